package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/options"
)

// testDB creates a temporary SQLite database.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&options.DatabaseOptions{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(&options.DatabaseOptions{Driver: "mysql"})
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	opts := &options.DatabaseOptions{Driver: DriverSQLite, SQLitePath: path}

	db, err := Open(opts)
	require.NoError(t, err)
	require.NoError(t, db.UpsertVehicle(context.Background(), &model.Vehicle{ID: "B001"}))
	require.NoError(t, db.Close())

	db, err = Open(opts)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.GetVehicle(context.Background(), "B001")
	assert.NoError(t, err)
}

func TestVehicleCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertVehicle(ctx, &model.Vehicle{ID: "B001", Name: "Boat 1", GatewayAddress: "10.0.0.5:5000"}))
	require.NoError(t, db.UpsertVehicle(ctx, &model.Vehicle{ID: "B002", Name: "Boat 2"}))

	v, err := db.GetVehicle(ctx, "B001")
	require.NoError(t, err)
	assert.Equal(t, &model.Vehicle{ID: "B001", Name: "Boat 1", GatewayAddress: "10.0.0.5:5000"}, v)

	require.NoError(t, db.UpsertVehicle(ctx, &model.Vehicle{ID: "B001", Name: "Boat 1", GatewayAddress: "10.0.0.9:5000"}))
	v, err = db.GetVehicle(ctx, "B001")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:5000", v.GatewayAddress)

	all, err := db.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "B002", all[1].ID)

	require.NoError(t, db.DeleteVehicle(ctx, "B002"))
	_, err = db.GetVehicle(ctx, "B002")
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)
}

func TestUsers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.GetUser(ctx, "alice")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	require.NoError(t, db.UpsertUser(ctx, "alice", []byte("hash-1")))
	require.NoError(t, db.UpsertUser(ctx, "alice", []byte("hash-2")))

	u, err := db.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("hash-2"), u.PasswordHash)
}

func TestAuditLog(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.AppendAudit(ctx, "telemetry", "B001", "", []byte(`{"lat":1}`), at))
	require.NoError(t, db.AppendAudit(ctx, "command", "B001", "alice", []byte(`{"speed":1500}`), at.Add(time.Second)))
	require.NoError(t, db.AppendAudit(ctx, "command", "B002", "bob", []byte(`{}`), at))

	entries, err := db.ListAudit(ctx, "B001", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "command", entries[0].Kind)
	assert.Equal(t, "alice", entries[0].Principal)
	assert.Equal(t, `{"speed":1500}`, entries[0].Payload)
	assert.True(t, entries[0].CreatedAt.Equal(at.Add(time.Second)), "got %v", entries[0].CreatedAt)
	assert.Equal(t, "telemetry", entries[1].Kind)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
}
