// Package session manages the lifecycle of viewer websocket connections:
// authentication, subscription, the read and write pumps and teardown.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/looplab/fsm"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	utilfsm "github.com/seawatch-io/seawatch/internal/pkg/util/fsm"
	"github.com/seawatch-io/seawatch/internal/relay/auth"
	"github.com/seawatch-io/seawatch/internal/relay/registry"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// Lifecycle states.
const (
	StateConnecting     = "connecting"
	StateAuthenticating = "authenticating"
	StateRejected       = "rejected"
	StateActive         = "active"
	StateClosed         = "closed"
)

// Lifecycle events.
const (
	EventAuthenticate = "authenticate"
	EventReject       = "reject"
	EventActivate     = "activate"
	EventClose        = "close"
)

// Application close codes sent to rejected viewers.
const (
	CloseMissingTarget = 4400
	CloseUnauthorized  = 4401
)

var errSessionClosed = errors.New("session closed")

// Dispatcher receives the commands a viewer sends while active.
type Dispatcher interface {
	Dispatch(ctx context.Context, principal, boundVehicle string, payload []byte)
}

// Session is one viewer connection. It implements registry.Subscriber.
type Session struct {
	id     string
	conn   *websocket.Conn
	cfg    Config
	target string

	principal *auth.Principal
	reg       *registry.Registry
	dispatch  Dispatcher
	onClose   func(*Session)

	machine *fsm.FSM
	send    chan []byte
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	// subMu orders registry subscription against teardown.
	subMu      sync.Mutex
	subscribed bool
	tornDown   bool

	logger log.Logger
}

var _ registry.Subscriber = (*Session)(nil)

func newSession(conn *websocket.Conn, cfg Config, target string, reg *registry.Registry, d Dispatcher, logger log.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       uuid.NewString(),
		conn:     conn,
		cfg:      cfg,
		target:   target,
		reg:      reg,
		dispatch: d,
		send:     make(chan []byte, cfg.SendQueue),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.logger = logger.WithValues("session", s.id, "target", target)

	s.machine = fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: EventAuthenticate, Src: []string{StateConnecting}, Dst: StateAuthenticating},
			{Name: EventReject, Src: []string{StateAuthenticating}, Dst: StateRejected},
			{Name: EventActivate, Src: []string{StateAuthenticating}, Dst: StateActive},
			{Name: EventClose, Src: []string{StateConnecting, StateAuthenticating, StateRejected, StateActive}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state":            s.onEnterState,
			"enter_" + StateRejected: utilfsm.WrapEvent(s.onRejected),
			"enter_" + StateActive:   utilfsm.WrapEvent(s.onActive),
			"enter_" + StateClosed:   utilfsm.WrapEvent(s.onClosed),
		},
	)
	metrics.Sessions.WithLabelValues(StateConnecting).Inc()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Target returns the vehicle id or registry.All the session watches.
func (s *Session) Target() string { return s.target }

// State returns the current lifecycle state.
func (s *Session) State() string { return s.machine.Current() }

// Deliver enqueues msg for the writer without blocking. It reports false
// when the session is closed or its queue is full.
func (s *Session) Deliver(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- msg:
		return true
	case <-s.done:
		return false
	default:
		s.logger.Debug("Send queue full, dropping message")
		return false
	}
}

// authenticate runs the authenticating step. A nil principal or an empty
// target rejects the session with the matching close code.
func (s *Session) authenticate(p *auth.Principal, err error) bool {
	if e := s.machine.Event(s.ctx, EventAuthenticate); e != nil {
		s.logger.Error(e, "Unexpected lifecycle transition")
		return false
	}

	switch {
	case err != nil || p == nil:
		s.reject(CloseUnauthorized, "unauthorized")
		return false
	case s.target == "":
		s.reject(CloseMissingTarget, "missing target")
		return false
	}

	s.principal = p
	s.logger = s.logger.WithValues("principal", p.Subject)
	if e := s.machine.Event(s.ctx, EventActivate); e != nil {
		s.logger.Error(e, "Activation failed")
		s.Close()
		return false
	}
	return true
}

func (s *Session) reject(code int, reason string) {
	if err := s.machine.Event(s.ctx, EventReject, code, reason); err != nil {
		s.logger.Error(err, "Unexpected lifecycle transition")
	}
	s.Close()
}

// Close tears the session down. It is safe to call from any goroutine and
// any number of times; only the first call has an effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.machine.Event(context.Background(), EventClose); err != nil {
			s.logger.Error(err, "Close transition failed, tearing down directly")
			s.teardown()
		}
	})
}

// shutdown notifies the peer that the server is going away, then closes.
func (s *Session) shutdown() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
	s.Close()
}

func (s *Session) onEnterState(_ context.Context, e *fsm.Event) {
	metrics.Sessions.WithLabelValues(e.Src).Dec()
	if e.Dst != StateClosed {
		metrics.Sessions.WithLabelValues(e.Dst).Inc()
	}
	s.logger.Debug("Session state changed", "from", e.Src, "to", e.Dst)
}

func (s *Session) onRejected(_ context.Context, e *fsm.Event) error {
	code, reason := CloseUnauthorized, "unauthorized"
	if len(e.Args) == 2 {
		code, _ = e.Args[0].(int)
		reason, _ = e.Args[1].(string)
	}
	s.logger.Info("Session rejected", "code", code, "reason", reason)

	msg := websocket.FormatCloseMessage(code, reason)
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
}

func (s *Session) onActive(_ context.Context, _ *fsm.Event) error {
	if err := s.subscribe(); err != nil {
		return err
	}
	s.logger.Info("Session active")

	go s.writePump()
	go s.readPump()
	return nil
}

func (s *Session) onClosed(_ context.Context, _ *fsm.Event) error {
	s.teardown()
	return nil
}

// subscribe registers the session for its target. The fsm runs enter
// callbacks outside its event lock, so a concurrent Close may already have
// torn the session down; it must then stay out of the registry.
func (s *Session) subscribe() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.tornDown {
		return errSessionClosed
	}
	if err := s.reg.Subscribe(s, s.target); err != nil {
		return err
	}
	s.subscribed = true
	return nil
}

// teardown is the single convergence point of every close path.
func (s *Session) teardown() {
	s.subMu.Lock()
	s.tornDown = true
	if s.subscribed {
		s.reg.Unsubscribe(s)
		s.subscribed = false
	}
	s.subMu.Unlock()

	close(s.done)
	s.cancel()
	_ = s.conn.Close()
	if s.onClose != nil {
		s.onClose(s)
	}
	s.logger.Info("Session closed")
}

// readPump forwards viewer messages to the dispatcher until the connection fails.
func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn("Read failed", "error", err.Error())
			}
			return
		}
		if s.State() != StateActive {
			continue
		}
		s.dispatch.Dispatch(s.ctx, s.principal.Subject, s.target, msg)
	}
}

// writePump writes queued messages one frame each and keeps the connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warn("Write failed", "error", err.Error())
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
