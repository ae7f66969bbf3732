package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/internal/pkg/mqtt/paths"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/log"
	pkgmqtt "github.com/seawatch-io/seawatch/pkg/mqtt"
	"github.com/seawatch-io/seawatch/pkg/mqtt/topic"
	"github.com/seawatch-io/seawatch/pkg/options"
)

const qos = 1

// Ingester accepts raw telemetry.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte, contentType string) (*model.TelemetrySample, error)
}

// Server implements the MQTT ingress layer: gateways publish telemetry to
// {root}/telemetry/{vehicleID} and presence to {root}/status/{clientID}.
type Server struct {
	client   pkgmqtt.Client
	topics   *topic.Builder
	group    string
	clientID string
	ingester Ingester
	logger   log.Logger

	mu       sync.Mutex
	presence map[string]bool
}

// NewServer creates a new MQTT server (client). clientID is the client's own
// presence identity.
func NewServer(client pkgmqtt.Client, opts *options.MqttOptions, clientID string, ingester Ingester) *Server {
	return &Server{
		client:   client,
		topics:   topic.NewBuilder(opts.TopicRoot),
		group:    opts.SharedGroup,
		clientID: clientID,
		ingester: ingester,
		logger:   log.WithName("mqtt-ingest"),
		presence: make(map[string]bool),
	}
}

// Start connects to the broker and subscribes to topics.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		s.logger.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// A clean DISCONNECT suppresses the will, so publish offline first.
		_ = s.client.Publish(shutdownCtx, s.topics.Build(paths.Status, s.clientID), qos, true, []byte(options.StatusOffline))
		s.client.Disconnect(shutdownCtx)
		s.logger.Info("MQTT client disconnected")
	}()

	s.logger.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		return err
	}
	s.logger.Info("MQTT Connected")

	if err := s.initMQTTSubscriptions(ctx); err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.topics.Build(paths.Status, s.clientID), qos, true, []byte(options.StatusOnline)); err != nil {
		s.logger.Error(err, "Failed to publish presence")
	}

	<-ctx.Done()

	return nil
}

func (s *Server) initMQTTSubscriptions(ctx context.Context) error {
	// Telemetry is load-balanced across replicas; every replica sees presence.
	subscriptions := map[string]pkgmqtt.MessageHandler{
		s.topics.Shared(s.group).BuildWildcard(paths.Telemetry): s.handleTelemetry,
		s.topics.BuildWildcard(paths.Status):                    s.handleStatus,
	}

	for filter, handler := range subscriptions {
		if err := s.client.Subscribe(ctx, filter, qos, handler); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
		}
		s.logger.Info("Subscribed", "topic", filter)
	}

	return nil
}

func (s *Server) handleTelemetry(ctx context.Context, t string, payload []byte) {
	id, ok := s.topics.Parse(paths.Telemetry, t)
	if !ok {
		s.logger.Warn("Ignoring telemetry on unexpected topic", "topic", t)
		return
	}

	sample, err := s.ingester.Ingest(ctx, payload, "")
	if err != nil {
		s.logger.Debug("Telemetry rejected", "topic", t, "error", err.Error())
		return
	}
	if sample.VehicleID != id {
		s.logger.Warn("Telemetry vehicle differs from topic", "topic", t, "vehicle", sample.VehicleID)
	}
}

func (s *Server) handleStatus(_ context.Context, t string, payload []byte) {
	id, ok := s.topics.Parse(paths.Status, t)
	if !ok {
		return
	}

	var online bool
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case options.StatusOnline:
		online = true
	case options.StatusOffline, "":
		// An empty retained message clears the client's presence.
	default:
		s.logger.Debug("Ignoring unknown presence payload", "client", id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presence[id] == online {
		return
	}
	if online {
		s.presence[id] = true
	} else {
		delete(s.presence, id)
	}
	metrics.PresenceOnline.Set(float64(len(s.presence)))
	s.logger.Info("Presence changed", "client", id, "online", online)
}

// Online lists the clients currently announcing themselves online.
func (s *Server) Online() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.presence))
	for id := range s.presence {
		out = append(out, id)
	}
	return out
}

// Ready reports whether the broker connection is up.
func (s *Server) Ready(context.Context) error {
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	return nil
}
