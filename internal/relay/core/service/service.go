// Package service implements the two data paths of the relay: telemetry
// ingest with fan-out to viewers, and command dispatch to gateways.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/registry"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// DefaultForwardTimeout bounds a single downstream forward.
const DefaultForwardTimeout = 5 * time.Second

// Options tune the service.
type Options struct {
	ForwardTimeout time.Duration
	// DefaultGateway is used for known vehicles without a gateway of their own.
	DefaultGateway string
}

// Service wires the inventory, the registry, the forwarder and the audit sink together.
type Service struct {
	inventory core.Inventory
	registry  *registry.Registry
	forwarder core.Forwarder
	audit     core.AuditSink
	opts      Options

	inflight    sync.WaitGroup
	ingestLog   log.Logger
	dispatchLog log.Logger
}

// New returns a Service.
func New(inv core.Inventory, reg *registry.Registry, fwd core.Forwarder, sink core.AuditSink, opts Options) *Service {
	if opts.ForwardTimeout <= 0 {
		opts.ForwardTimeout = DefaultForwardTimeout
	}
	return &Service{
		inventory:   inv,
		registry:    reg,
		forwarder:   fwd,
		audit:       sink,
		opts:        opts,
		ingestLog:   log.WithName("ingest"),
		dispatchLog: log.WithName("dispatch"),
	}
}

// Ingest decodes one telemetry record, delivers it to every viewer of its
// vehicle and submits it to the audit sink. Delivery never blocks: a full
// or closed session is skipped. Zero receivers is not an error.
func (s *Service) Ingest(ctx context.Context, raw []byte, contentType string) (*model.TelemetrySample, error) {
	sample, err := model.ParseTelemetry(raw, contentType)
	if err != nil {
		metrics.TelemetryIngested.WithLabelValues("malformed").Inc()
		s.ingestLog.Debug("Rejected telemetry", "error", err.Error())
		return nil, err
	}

	if _, err := s.inventory.LookupVehicle(ctx, sample.VehicleID); err != nil {
		if errors.Is(err, core.ErrUnknownVehicle) {
			metrics.TelemetryIngested.WithLabelValues("unknown").Inc()
			s.ingestLog.Warn("Telemetry for unknown vehicle", "vehicle", sample.VehicleID)
			return nil, err
		}
		metrics.TelemetryIngested.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lookup vehicle %s: %w", sample.VehicleID, err)
	}

	msg := sample.Encode()
	delivered := 0
	receivers := s.registry.ResolveReceivers(sample.VehicleID)
	for _, r := range receivers {
		if r.Deliver(msg) {
			delivered++
		}
	}
	metrics.TelemetryIngested.WithLabelValues("ok").Inc()
	metrics.TelemetryDelivered.Add(float64(delivered))

	s.audit.LogTelemetry(sample)

	s.ingestLog.Debug("Telemetry relayed", "vehicle", sample.VehicleID, "receivers", len(receivers), "delivered", delivered)
	return sample, nil
}

// Dispatch handles a command sent by principal on a connection bound to
// boundVehicle (or registry.All). Failures are logged and counted; nothing
// is reported back to the connection.
func (s *Service) Dispatch(ctx context.Context, principal, boundVehicle string, payload []byte) {
	bound := boundVehicle
	if bound == registry.All {
		bound = ""
	}

	cmd, err := model.ParseCommand(payload, bound)
	if err != nil {
		metrics.CommandsForwarded.WithLabelValues("malformed").Inc()
		s.dispatchLog.Warn("Dropped malformed command", "principal", principal, "bound", boundVehicle, "error", err.Error())
		return
	}
	cmd.Principal = principal
	logger := s.dispatchLog.WithValues("command", cmd.ID, "vehicle", cmd.VehicleID, "principal", principal)

	gateway, err := s.inventory.LookupGatewayAddress(ctx, cmd.VehicleID)
	if err != nil {
		metrics.CommandsForwarded.WithLabelValues("dropped").Inc()
		if errors.Is(err, core.ErrUnknownVehicle) {
			logger.Warn("Dropped command for unknown vehicle")
		} else {
			logger.Error(err, "Gateway lookup failed, dropping command")
		}
		return
	}
	if gateway == "" {
		gateway = s.opts.DefaultGateway
	}
	if gateway == "" {
		metrics.CommandsForwarded.WithLabelValues("dropped").Inc()
		logger.Warn("No gateway configured for vehicle, dropping command")
		return
	}

	s.audit.LogCommand(cmd)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.forward(context.WithoutCancel(ctx), gateway, cmd, logger)
	}()
}

func (s *Service) forward(ctx context.Context, gateway string, cmd *model.Command, logger log.Logger) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ForwardTimeout)
	defer cancel()

	start := time.Now()
	err := s.forwarder.Forward(ctx, gateway, cmd)
	elapsed := time.Since(start)

	if err != nil {
		metrics.CommandsForwarded.WithLabelValues("failed").Inc()
		metrics.ForwardLatency.WithLabelValues("failed").Observe(elapsed.Seconds())
		logger.Error(fmt.Errorf("%w: %w", core.ErrDownstreamUnavailable, err), "Forward failed", "gateway", gateway)
		return
	}
	metrics.CommandsForwarded.WithLabelValues("ok").Inc()
	metrics.ForwardLatency.WithLabelValues("ok").Observe(elapsed.Seconds())
	logger.Info("Command forwarded", "gateway", gateway, "elapsed", elapsed)
}

// Wait blocks until in-flight forwards finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
