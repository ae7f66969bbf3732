package options

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"0.0.0.0:3001", false},
		{":8091", false},
		{"localhost:6379", false},
		{"gateway-01.local:5000", false},
		{"no-port", true},
		{"host:99999", true},
		{"host:abc", true},
		{"bad_host!:80", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsValidate(t *testing.T) {
	groups := map[string]IOptions{
		"http":      NewHttpOptions(),
		"grpc":      NewGrpcOptions(),
		"mqtt":      NewMqttOptions(),
		"s3":        NewS3Options(),
		"kube":      NewKubeOptions(),
		"database":  NewDatabaseOptions(),
		"redis":     NewRedisOptions(),
		"kafka":     NewKafkaOptions(),
		"relay":     NewRelayOptions(),
		"audit":     NewAuditOptions(),
		"inventory": NewInventoryOptions(),
	}

	for name, o := range groups {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, o.Validate())
		})
	}
}

func TestAuthOptionsRequireKey(t *testing.T) {
	o := NewAuthOptions()
	assert.NotEmpty(t, o.Validate())

	o.SigningKey = "0123456789abcdef"
	assert.Empty(t, o.Validate())
}

func TestInventoryRoutesFlag(t *testing.T) {
	o := NewInventoryOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--inventory.backend=static",
		"--inventory.routes=B001=10.0.0.5:5000,B002=",
	}))
	assert.Equal(t, "static", o.Backend)
	assert.Empty(t, o.Validate())

	routes, err := o.RouteTable()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"B001": "10.0.0.5:5000", "B002": ""}, routes)
}

func TestParseRoutesRejects(t *testing.T) {
	for _, entries := range [][]string{
		{"B001"},
		{"=10.0.0.5:5000"},
		{"B001=a:1", "B001=b:1"},
	} {
		_, err := ParseRoutes(entries)
		assert.Error(t, err, entries)
	}
}

func TestMqttToClientConfig(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "mqtt://broker:1883"

	cfg := o.ToClientConfig()
	assert.True(t, strings.HasPrefix(cfg.ClientID, "seawatch-relay-"))
	assert.Equal(t, uint16(60), cfg.KeepAlive)
	assert.Equal(t, "seawatch/v1/status/"+cfg.ClientID, cfg.WillTopic)
	assert.Equal(t, StatusOffline, string(cfg.WillPayload))
	assert.True(t, cfg.WillRetain)
	assert.NoError(t, cfg.Validate())

	o.ClientID = "relay-1"
	assert.Equal(t, "relay-1", o.ToClientConfig().ClientID)
}
