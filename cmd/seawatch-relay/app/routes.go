package app

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/seawatch-io/seawatch/cmd/seawatch-relay/app/options"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/store"
)

func newRoutesCommand(opts *options.RelayServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List known vehicles and the gateway their commands are forwarded to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			errs := opts.InventoryOptions.Validate()
			if opts.InventoryOptions.Backend == "sql" {
				errs = append(errs, opts.DatabaseOptions.Validate()...)
			}
			if err := utilerrors.NewAggregate(errs); err != nil {
				return err
			}

			cfg, err := opts.Config()
			if err != nil {
				return err
			}

			var db *store.DB
			if opts.InventoryOptions.Backend == "sql" {
				if db, err = store.Open(opts.DatabaseOptions); err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer db.Close()
			}

			inv, _, err := cfg.Inventory(db)
			if err != nil {
				return err
			}
			vehicles, err := inv.ListVehicles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list vehicles: %w", err)
			}

			printRoutes(cmd.OutOrStdout(), vehicles, opts.RelayOptions.DefaultGateway)
			return nil
		},
	}
}

func printRoutes(w io.Writer, vehicles []*model.Vehicle, defaultGateway string) {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("VEHICLE", "NAME", "GATEWAY")
	for _, v := range vehicles {
		gw := v.GatewayAddress
		switch {
		case gw != "":
		case defaultGateway != "":
			gw = defaultGateway + " (default)"
		default:
			gw = "<none>"
		}
		table.AddRow(v.ID, v.Name, gw)
	}
	fmt.Fprintln(w, table)
}
