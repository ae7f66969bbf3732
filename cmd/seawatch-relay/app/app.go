package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/seawatch-io/seawatch/cmd/seawatch-relay/app/options"
	"github.com/seawatch-io/seawatch/internal/relay"
	"github.com/seawatch-io/seawatch/pkg/app"
	"github.com/seawatch-io/seawatch/pkg/log"
	pkgoptions "github.com/seawatch-io/seawatch/pkg/options"
)

const (
	commandName = "seawatch-relay"
	commandDesc = `The seawatch relay sits between boat gateways and the people watching them.

Gateways push telemetry over HTTP or MQTT; the relay fans every update out
to authenticated WebSocket viewers watching that vehicle. Commands sent by
viewers travel the other way and are forwarded to the vehicle's gateway.`
	envPrefix = "SEAWATCH"
)

func NewApp() *app.App {
	opts := options.NewRelayServerOptions()
	return app.NewApp(
		commandName,
		"Launch the seawatch telemetry relay",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithEnvPrefix(envPrefix),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
		app.WithSubCommands(newRoutesCommand(opts), newSeedCommand(opts)),
	)
}

func run(opts *options.RelayServerOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewRelayServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create relay server: %w", err)
		}

		if opts.InventoryOptions.Backend == "static" {
			app.WatchConfig(reloadRoutes(ctx, server))
		}

		return server.Run(ctx)
	}
}

// reloadRoutes applies edited inventory.routes entries from the config file.
// Other settings need a restart.
func reloadRoutes(ctx context.Context, server *relay.RelayServer) func(v *viper.Viper) {
	return func(v *viper.Viper) {
		routes, err := pkgoptions.ParseRoutes(v.GetStringSlice("inventory.routes"))
		if err != nil {
			log.Error(err, "Ignoring invalid inventory routes", "file", app.ConfigFile())
			return
		}
		server.ReloadRoutes(ctx, routes)
	}
}
