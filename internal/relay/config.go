package relay

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/seawatch-io/seawatch/internal/relay/audit"
	"github.com/seawatch-io/seawatch/internal/relay/auth"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/service"
	"github.com/seawatch-io/seawatch/internal/relay/forwarder"
	"github.com/seawatch-io/seawatch/internal/relay/inventory"
	"github.com/seawatch-io/seawatch/internal/relay/registry"
	"github.com/seawatch-io/seawatch/internal/relay/server"
	grpcserver "github.com/seawatch-io/seawatch/internal/relay/server/grpc"
	httpserver "github.com/seawatch-io/seawatch/internal/relay/server/http"
	mqttserver "github.com/seawatch-io/seawatch/internal/relay/server/mqtt"
	"github.com/seawatch-io/seawatch/internal/relay/session"
	"github.com/seawatch-io/seawatch/internal/relay/store"
	"github.com/seawatch-io/seawatch/pkg/log"
	pkgmqtt "github.com/seawatch-io/seawatch/pkg/mqtt"
	"github.com/seawatch-io/seawatch/pkg/options"
)

type Config struct {
	HttpOptions      *options.HttpOptions
	GrpcOptions      *options.GrpcOptions
	MqttOptions      *options.MqttOptions
	S3Options        *options.S3Options
	KubeOptions      *options.KubeOptions
	AuthOptions      *options.AuthOptions
	DatabaseOptions  *options.DatabaseOptions
	RedisOptions     *options.RedisOptions
	KafkaOptions     *options.KafkaOptions
	RelayOptions     *options.RelayOptions
	AuditOptions     *options.AuditOptions
	InventoryOptions *options.InventoryOptions
}

// NewRelayServer opens every backend and assembles the relay. Nothing
// listens until Run.
func (cfg *Config) NewRelayServer(ctx context.Context) (_ *RelayServer, err error) {
	r := &RelayServer{}
	defer func() {
		if err != nil {
			r.close()
		}
	}()

	// 1. Storage: users, the sql inventory and the sql audit backend.
	r.db, err = store.Open(cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.checks = map[string]func(context.Context) error{"database": r.db.PingContext}

	// 2. Inventory, optionally behind the Redis cache.
	inv, static, err := cfg.Inventory(r.db)
	if err != nil {
		return nil, err
	}
	r.static = static
	var lookups core.Inventory = inv
	if cfg.RedisOptions.Enabled() {
		r.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisOptions.Addr,
			Password: cfg.RedisOptions.Password,
			DB:       cfg.RedisOptions.DB,
		})
		r.cache = inventory.NewCached(inv, r.rdb, cfg.RedisOptions.CacheTTL)
		lookups = r.cache
		r.checks["redis"] = func(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }
	}
	var watcher *inventory.BoatWatcher
	if cfg.InventoryOptions.Backend == "kube" && r.cache != nil {
		restCfg, err := inventory.NewKubeConfig(cfg.KubeOptions)
		if err != nil {
			return nil, err
		}
		if watcher, err = inventory.NewBoatWatcher(restCfg, cfg.KubeOptions.Namespace, r.cache); err != nil {
			return nil, err
		}
	}

	// 3. Audit sink.
	writers, err := cfg.auditWriters(ctx, r.db)
	if err != nil {
		return nil, err
	}
	r.sink = audit.NewAsyncSink(cfg.AuditOptions.QueueSize, cfg.AuditOptions.Workers, writers...)

	// 4. MQTT client shared by the ingest server and the mqtt forwarder.
	var mqttClient pkgmqtt.Client
	clientCfg := cfg.MqttOptions.ToClientConfig()
	if cfg.MqttOptions.Enabled() {
		mqttClient, err = pkgmqtt.NewClient(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt client: %w", err)
		}
	}

	// 5. Downstream forwarder.
	var fwd core.Forwarder
	switch cfg.RelayOptions.Forwarder {
	case "mqtt":
		if mqttClient == nil {
			return nil, fmt.Errorf("--relay.forwarder=mqtt requires --mqtt.broker")
		}
		fwd = forwarder.NewMQTT(mqttClient, cfg.MqttOptions.TopicRoot)
	default:
		fwd = forwarder.NewHTTP(nil)
	}

	// 6. Core service and viewer sessions.
	reg := registry.New()
	r.svc = service.New(lookups, reg, fwd, r.sink, service.Options{
		ForwardTimeout: cfg.RelayOptions.ForwardTimeout,
		DefaultGateway: cfg.RelayOptions.DefaultGateway,
	})

	guard, err := auth.NewGuard(auth.Config{
		SigningKey: []byte(cfg.AuthOptions.SigningKey),
		Issuer:     cfg.AuthOptions.Issuer,
		TTL:        cfg.AuthOptions.TokenTTL,
	}, r.db)
	if err != nil {
		return nil, err
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.SendQueue = cfg.RelayOptions.SendQueue
	sessionCfg.AllowedOrigins = cfg.HttpOptions.AllowedOrigins
	viewers := session.NewManager(sessionCfg, reg, guard, r.svc)

	// 7. Ingress servers.
	var servers []server.Server
	if mqttClient != nil {
		mqttSrv := mqttserver.NewServer(mqttClient, cfg.MqttOptions, clientCfg.ClientID, r.svc)
		r.checks["mqtt"] = mqttSrv.Ready
		servers = append(servers, mqttSrv)
	}

	if watcher != nil {
		servers = append(servers, watcher)
	}

	httpChecks := make(map[string]httpserver.Check, len(r.checks))
	grpcChecks := make(map[string]grpcserver.Check, len(r.checks))
	for name, check := range r.checks {
		httpChecks[name] = check
		grpcChecks[name] = check
	}

	servers = append(servers, httpserver.NewServer(cfg.HttpOptions, cfg.RelayOptions, httpserver.Deps{
		Ingester: r.svc,
		Guard:    guard,
		Viewers:  viewers,
		Vehicles: inv,
		Checks:   httpChecks,
	}))
	if cfg.GrpcOptions.Addr != "" {
		servers = append(servers, grpcserver.NewServer(cfg.GrpcOptions, grpcChecks))
	}

	r.serverManager = server.NewManager(servers...)
	return r, nil
}

// Inventory builds the configured vehicle inventory without caching. The
// static inventory is also returned so route reloads can reach it.
func (cfg *Config) Inventory(db *store.DB) (inventory.Inventory, *inventory.Static, error) {
	switch cfg.InventoryOptions.Backend {
	case "kube":
		c, err := inventory.NewKubeClient(cfg.KubeOptions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		return inventory.NewKube(c, cfg.KubeOptions.Namespace), nil, nil
	case "static":
		routes, err := cfg.InventoryOptions.RouteTable()
		if err != nil {
			return nil, nil, err
		}
		s := inventory.NewStatic(routes)
		return s, s, nil
	default:
		if db == nil {
			return nil, nil, fmt.Errorf("sql inventory needs a database")
		}
		return inventory.NewSQL(db), nil, nil
	}
}

func (cfg *Config) auditWriters(ctx context.Context, db *store.DB) ([]audit.Writer, error) {
	var writers []audit.Writer
	for _, backend := range cfg.AuditOptions.Backends {
		switch backend {
		case "log":
			writers = append(writers, audit.NewLogWriter())
		case "sql":
			writers = append(writers, audit.NewSQLWriter(db))
		case "kafka":
			w, err := audit.NewKafkaWriter(cfg.KafkaOptions.Brokers, cfg.KafkaOptions.Topic)
			if err != nil {
				return nil, fmt.Errorf("failed to create kafka audit writer: %w", err)
			}
			writers = append(writers, w)
		case "s3":
			client, err := audit.NewMinioClient(ctx, cfg.S3Options)
			if err != nil {
				return nil, fmt.Errorf("failed to create s3 audit writer: %w", err)
			}
			writers = append(writers, audit.NewS3Writer(client, cfg.S3Options.BucketName, cfg.S3Options.Prefix,
				cfg.S3Options.FlushInterval, cfg.S3Options.FlushSize))
		}
	}
	log.Info("Audit backends configured", "backends", cfg.AuditOptions.Backends)
	return writers, nil
}
