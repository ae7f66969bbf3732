package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RelayOptions)(nil)

// RelayOptions tune the ingest, fan-out and command forwarding paths.
type RelayOptions struct {
	// Forwarder selects the downstream command transport: "http" or "mqtt".
	Forwarder string `json:"forwarder" mapstructure:"forwarder"`

	// ForwardTimeout bounds a single downstream forward.
	ForwardTimeout time.Duration `json:"forward-timeout" mapstructure:"forward-timeout"`

	// DefaultGateway is used for vehicles whose inventory record carries no
	// gateway address.
	DefaultGateway string `json:"default-gateway" mapstructure:"default-gateway"`

	// GatewayKey, when set, is accepted from gateways in the X-Gateway-Key
	// header on the ingest endpoint as an alternative to a bearer token.
	GatewayKey string `json:"gateway-key" mapstructure:"gateway-key"`

	// AllowAnonymousIngest accepts telemetry without any credential.
	AllowAnonymousIngest bool `json:"allow-anonymous-ingest" mapstructure:"allow-anonymous-ingest"`

	// SendQueue is the per-viewer outbound buffer; samples beyond it are dropped.
	SendQueue int `json:"send-queue" mapstructure:"send-queue"`

	// MaxIngestBytes caps the size of an ingest request body.
	MaxIngestBytes int64 `json:"max-ingest-bytes" mapstructure:"max-ingest-bytes"`
}

func NewRelayOptions() *RelayOptions {
	return &RelayOptions{
		Forwarder:      "http",
		ForwardTimeout: 5 * time.Second,
		SendQueue:      256,
		MaxIngestBytes: 4096,
	}
}

func (o *RelayOptions) Validate() []error {
	errors := []error{}

	switch o.Forwarder {
	case "http", "mqtt":
	default:
		errors = append(errors, fmt.Errorf("--relay.forwarder must be 'http' or 'mqtt', got %q", o.Forwarder))
	}
	if o.ForwardTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--relay.forward-timeout must be positive"))
	}
	if o.SendQueue <= 0 {
		errors = append(errors, fmt.Errorf("--relay.send-queue must be positive"))
	}
	if o.MaxIngestBytes <= 0 {
		errors = append(errors, fmt.Errorf("--relay.max-ingest-bytes must be positive"))
	}

	return errors
}

func (o *RelayOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Forwarder, "relay.forwarder", o.Forwarder, "Downstream command transport: 'http' or 'mqtt'.")
	fs.DurationVar(&o.ForwardTimeout, "relay.forward-timeout", o.ForwardTimeout, "Timeout for a single command forward.")
	fs.StringVar(&o.DefaultGateway, "relay.default-gateway", o.DefaultGateway, "Gateway address used when a vehicle has none on record.")
	fs.StringVar(&o.GatewayKey, "relay.gateway-key", o.GatewayKey, "Shared key gateways may send in X-Gateway-Key instead of a bearer token (empty disables the key).")
	fs.BoolVar(&o.AllowAnonymousIngest, "relay.allow-anonymous-ingest", o.AllowAnonymousIngest, "Accept telemetry without a bearer token or gateway key. Only for trusted networks.")
	fs.IntVar(&o.SendQueue, "relay.send-queue", o.SendQueue, "Per-viewer outbound message buffer.")
	fs.Int64Var(&o.MaxIngestBytes, "relay.max-ingest-bytes", o.MaxIngestBytes, "Maximum telemetry request body size.")
}
