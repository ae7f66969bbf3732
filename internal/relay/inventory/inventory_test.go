package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/store"
	"github.com/seawatch-io/seawatch/pkg/options"
)

func TestSQLInventory(t *testing.T) {
	db, err := store.Open(&options.DatabaseOptions{
		Driver:     store.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "inv.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertVehicle(ctx, &model.Vehicle{ID: "B001", Name: "one", GatewayAddress: "10.0.0.5:5000"}))
	require.NoError(t, db.UpsertVehicle(ctx, &model.Vehicle{ID: "B002"}))

	inv := NewSQL(db)

	gw, err := inv.LookupGatewayAddress(ctx, "B001")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:5000", gw)

	gw, err = inv.LookupGatewayAddress(ctx, "B002")
	require.NoError(t, err)
	assert.Empty(t, gw)

	_, err = inv.LookupVehicle(ctx, "B404")
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)

	all, err := inv.ListVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStaticInventory(t *testing.T) {
	ctx := context.Background()
	inv := NewStatic(map[string]string{"B001": "gw1:5000", "B002": "", "bad id": "x"})

	v, err := inv.LookupVehicle(ctx, "B001")
	require.NoError(t, err)
	assert.Equal(t, "gw1:5000", v.GatewayAddress)

	_, err = inv.LookupVehicle(ctx, "bad id")
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)

	all, err := inv.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "B001", all[0].ID)

	inv.Update(map[string]string{"B003": "gw3:5000"})
	_, err = inv.LookupVehicle(ctx, "B001")
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)
	gw, err := inv.LookupGatewayAddress(ctx, "B003")
	require.NoError(t, err)
	assert.Equal(t, "gw3:5000", gw)
}

type countingInventory struct {
	core.Inventory
	lookups int
}

func (c *countingInventory) LookupVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	c.lookups++
	return c.Inventory.LookupVehicle(ctx, id)
}

func TestCachedInventory(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	backing := &countingInventory{Inventory: NewStatic(map[string]string{"B001": "gw1:5000"})}
	inv := NewCached(backing, rdb, time.Minute)

	for range 3 {
		gw, err := inv.LookupGatewayAddress(ctx, "B001")
		require.NoError(t, err)
		assert.Equal(t, "gw1:5000", gw)
	}
	assert.Equal(t, 1, backing.lookups)
	assert.True(t, mr.Exists(cacheKeyPrefix+"B001"))

	t.Run("unknown vehicles are not cached", func(t *testing.T) {
		backing.lookups = 0
		for range 2 {
			_, err := inv.LookupVehicle(ctx, "B404")
			assert.ErrorIs(t, err, core.ErrUnknownVehicle)
		}
		assert.Equal(t, 2, backing.lookups)
		assert.False(t, mr.Exists(cacheKeyPrefix+"B404"))
	})

	t.Run("entries expire", func(t *testing.T) {
		backing.lookups = 0
		mr.FastForward(2 * time.Minute)
		_, err := inv.LookupVehicle(ctx, "B001")
		require.NoError(t, err)
		assert.Equal(t, 1, backing.lookups)
	})

	t.Run("invalidate", func(t *testing.T) {
		require.NoError(t, inv.Invalidate(ctx, "B001"))
		assert.False(t, mr.Exists(cacheKeyPrefix+"B001"))
	})

	t.Run("redis down falls through", func(t *testing.T) {
		backing.lookups = 0
		mr.Close()
		gw, err := inv.LookupGatewayAddress(ctx, "B001")
		require.NoError(t, err)
		assert.Equal(t, "gw1:5000", gw)
		assert.Equal(t, 1, backing.lookups)
	})
}
