package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*InventoryOptions)(nil)

// InventoryOptions select where vehicle records and gateway routes come from.
type InventoryOptions struct {
	// Backend is "sql", "kube" or "static".
	Backend string `json:"backend" mapstructure:"backend"`

	// Routes lists "vehicleId=gateway" entries for the static backend. Every
	// listed vehicle is registered; an empty gateway uses the default gateway.
	Routes []string `json:"routes" mapstructure:"routes"`
}

func NewInventoryOptions() *InventoryOptions {
	return &InventoryOptions{
		Backend: "sql",
	}
}

// RouteTable parses Routes into vehicle id -> gateway address.
func (o *InventoryOptions) RouteTable() (map[string]string, error) {
	return ParseRoutes(o.Routes)
}

// ParseRoutes parses "vehicleId=gateway" entries.
func ParseRoutes(entries []string) (map[string]string, error) {
	routes := make(map[string]string, len(entries))
	for _, e := range entries {
		id, gw, ok := strings.Cut(e, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("route %q must look like vehicleId=gateway", e)
		}
		if _, dup := routes[id]; dup {
			return nil, fmt.Errorf("vehicle %q is routed twice", id)
		}
		routes[id] = strings.TrimSpace(gw)
	}
	return routes, nil
}

func (o *InventoryOptions) Validate() []error {
	errors := []error{}

	switch o.Backend {
	case "sql", "kube":
	case "static":
		if len(o.Routes) == 0 {
			errors = append(errors, fmt.Errorf("--inventory.routes must list at least one vehicle for the static backend"))
		}
		if _, err := o.RouteTable(); err != nil {
			errors = append(errors, fmt.Errorf("--inventory.routes: %w", err))
		}
	default:
		errors = append(errors, fmt.Errorf("unknown --inventory.backend %q", o.Backend))
	}

	return errors
}

func (o *InventoryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "inventory.backend", o.Backend, "Vehicle inventory backend: sql, kube or static.")
	fs.StringSliceVar(&o.Routes, "inventory.routes", o.Routes, "Static vehicleId=gateway routes (static backend).")
}
