package app

import (
	"fmt"

	"github.com/spf13/cobra"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/seawatch-io/seawatch/cmd/seawatch-relay/app/options"
	"github.com/seawatch-io/seawatch/internal/relay/auth"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/store"
	"github.com/seawatch-io/seawatch/pkg/log"
	pkgoptions "github.com/seawatch-io/seawatch/pkg/options"
)

type seedOptions struct {
	user     string
	password string
	vehicles []string
}

func newSeedCommand(opts *options.RelayServerOptions) *cobra.Command {
	o := &seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update users and vehicles in the relay database",
		Example: `  seawatch-relay seed --user skipper --password changeme
  seawatch-relay seed --vehicle B001=10.0.0.5:8080 --vehicle B002=`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.validate(opts); err != nil {
				return err
			}
			return o.run(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&o.user, "user", "", "Username to create or update.")
	cmd.Flags().StringVar(&o.password, "password", "", "Password for --user.")
	cmd.Flags().StringSliceVar(&o.vehicles, "vehicle", nil, "Vehicle to register as vehicleId=gateway. Repeatable.")
	return cmd
}

func (o *seedOptions) validate(opts *options.RelayServerOptions) error {
	errs := opts.DatabaseOptions.Validate()
	if o.user == "" && len(o.vehicles) == 0 {
		errs = append(errs, fmt.Errorf("nothing to seed: pass --user or --vehicle"))
	}
	if o.user != "" && o.password == "" {
		errs = append(errs, fmt.Errorf("--password is required with --user"))
	}
	routes, err := pkgoptions.ParseRoutes(o.vehicles)
	if err != nil {
		errs = append(errs, fmt.Errorf("--vehicle: %w", err))
	}
	for id := range routes {
		if !model.ValidVehicleID(id) {
			errs = append(errs, fmt.Errorf("--vehicle: invalid vehicle id %q", id))
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (o *seedOptions) run(cmd *cobra.Command, opts *options.RelayServerOptions) error {
	ctx := cmd.Context()

	db, err := store.Open(opts.DatabaseOptions)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if o.user != "" {
		hash, err := auth.HashPassword(o.password)
		if err != nil {
			return err
		}
		if err := db.UpsertUser(ctx, o.user, hash); err != nil {
			return fmt.Errorf("failed to save user %q: %w", o.user, err)
		}
		log.Info("User saved", "username", o.user)
	}

	routes, _ := pkgoptions.ParseRoutes(o.vehicles)
	for id, gw := range routes {
		if err := db.UpsertVehicle(ctx, &model.Vehicle{ID: id, GatewayAddress: gw}); err != nil {
			return fmt.Errorf("failed to save vehicle %q: %w", id, err)
		}
		log.Info("Vehicle saved", "vehicleId", id, "gateway", gw)
	}
	return nil
}
