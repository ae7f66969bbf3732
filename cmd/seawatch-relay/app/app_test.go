package app

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := NewApp().Command()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--log.level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedThenRoutes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")

	_, err := execute(t, "seed",
		"--database.sqlite-path", dbPath,
		"--user", "skipper", "--password", "changeme",
		"--vehicle", "B001=10.0.0.5:8080", "--vehicle", "B002=")
	require.NoError(t, err)

	out, err := execute(t, "routes",
		"--database.sqlite-path", dbPath,
		"--relay.default-gateway", "gw.local:80")
	require.NoError(t, err)
	assert.Contains(t, out, "VEHICLE")
	assert.Contains(t, out, "10.0.0.5:8080")
	assert.Contains(t, out, "gw.local:80 (default)")
}

func TestSeedRejectsBadInput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")

	_, err := execute(t, "seed", "--database.sqlite-path", dbPath)
	require.ErrorContains(t, err, "nothing to seed")

	_, err = execute(t, "seed", "--database.sqlite-path", dbPath, "--user", "skipper")
	require.ErrorContains(t, err, "--password is required")

	_, err = execute(t, "seed", "--database.sqlite-path", dbPath, "--vehicle", "B/1=gw")
	require.ErrorContains(t, err, "invalid vehicle id")
}

func TestRoutesFromEnvironment(t *testing.T) {
	t.Setenv("SEAWATCH_INVENTORY_BACKEND", "static")
	t.Setenv("SEAWATCH_INVENTORY_ROUTES", "B007=gw7:80,B008=")

	out, err := execute(t, "routes")
	require.NoError(t, err)
	assert.Contains(t, out, "B007")
	assert.Contains(t, out, "gw7:80")
	assert.Contains(t, out, "<none>")
}

func TestRunValidatesOptions(t *testing.T) {
	_, err := execute(t, "--relay.forwarder", "mqtt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--auth.signing-key")
	assert.Contains(t, err.Error(), "--relay.forwarder=mqtt requires --mqtt.broker")
}

func TestPrintRoutes(t *testing.T) {
	var out bytes.Buffer
	printRoutes(&out, []*model.Vehicle{
		{ID: "B001", Name: "Kestrel", GatewayAddress: "10.0.0.5:8080"},
		{ID: "B002"},
	}, "")

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "Kestrel")
	assert.Contains(t, string(lines[2]), "<none>")
}
