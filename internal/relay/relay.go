// Package relay assembles the seawatch telemetry relay from its options.
package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seawatch-io/seawatch/internal/relay/audit"
	"github.com/seawatch-io/seawatch/internal/relay/core/service"
	"github.com/seawatch-io/seawatch/internal/relay/inventory"
	"github.com/seawatch-io/seawatch/internal/relay/server"
	"github.com/seawatch-io/seawatch/internal/relay/store"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// drainTimeout bounds how long in-flight command forwards may finish after
// the servers stop.
const drainTimeout = 10 * time.Second

type RelayServer struct {
	serverManager *server.Manager
	svc           *service.Service
	sink          *audit.AsyncSink
	db            *store.DB
	rdb           *redis.Client
	static        *inventory.Static
	cache         *inventory.Cached
	checks        map[string]func(context.Context) error
}

// Run serves until ctx is done, then lets in-flight forwards finish, drains
// the audit queue and closes the backends.
func (r *RelayServer) Run(ctx context.Context) error {
	sinkCtx, stopSink := context.WithCancel(context.WithoutCancel(ctx))
	sinkDone := make(chan error, 1)
	go func() { sinkDone <- r.sink.Start(sinkCtx) }()

	err := r.serverManager.Start(ctx)
	if err != nil {
		log.Error(err, "Server stopped with error")
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if werr := r.svc.Wait(waitCtx); werr != nil {
		log.Warn("Abandoning in-flight command forwards", "error", werr.Error())
	}

	stopSink()
	<-sinkDone
	r.close()

	log.Info("Relay stopped")
	return err
}

// ReloadRoutes replaces the static route table and evicts any cached
// entries for the affected vehicles. It is a no-op for other backends.
func (r *RelayServer) ReloadRoutes(ctx context.Context, routes map[string]string) {
	if r.static == nil {
		return
	}

	affected := make(map[string]struct{}, len(routes))
	if before, err := r.static.ListVehicles(ctx); err == nil {
		for _, v := range before {
			affected[v.ID] = struct{}{}
		}
	}
	for id := range routes {
		affected[id] = struct{}{}
	}

	r.static.Update(routes)

	if r.cache == nil {
		return
	}
	for id := range affected {
		if err := r.cache.Invalidate(ctx, id); err != nil {
			log.Warn("Failed to evict cached route", "vehicle", id, "error", err.Error())
		}
	}
}

func (r *RelayServer) close() {
	if r.rdb != nil {
		if err := r.rdb.Close(); err != nil {
			log.Error(err, "Failed to close redis client")
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			log.Error(err, "Failed to close database")
		}
	}
}
