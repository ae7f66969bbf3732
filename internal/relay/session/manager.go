package session

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/seawatch-io/seawatch/internal/relay/auth"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/registry"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// Validator checks the credential presented on the websocket handshake.
type Validator interface {
	Validate(material string) (*auth.Principal, error)
}

// Manager upgrades viewer requests into sessions and tracks them until they close.
type Manager struct {
	cfg        Config
	reg        *registry.Registry
	validator  Validator
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	logger     log.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewManager returns a Manager that subscribes sessions in reg and hands their commands to d.
func NewManager(cfg Config, reg *registry.Registry, v Validator, d Dispatcher) *Manager {
	m := &Manager{
		cfg:        cfg.withDefaults(),
		reg:        reg,
		validator:  v,
		dispatcher: d,
		logger:     log.WithName("session"),
		sessions:   make(map[*Session]struct{}),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{"bearer"},
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

// ServeHTTP handles GET /ws/{target}. The handshake always completes so a
// rejected viewer learns the reason from the close code.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	target := strings.TrimSpace(mux.Vars(r)["target"])
	if target != registry.All && !model.ValidVehicleID(target) {
		target = ""
	}

	s := newSession(conn, m.cfg, target, m.reg, m.dispatcher, m.logger)
	if !m.track(s) {
		s.shutdown()
		return
	}

	p, err := m.validator.Validate(auth.TokenFromRequest(r))
	s.authenticate(p, err)
}

// Shutdown closes every live session with a going-away close frame.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.shutdown()
	}
	m.logger.Info("All sessions closed", "count", len(sessions))
}

// Len returns the number of sessions not yet closed.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// track registers s; it reports false once Shutdown has run.
func (m *Manager) track(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		return false
	}
	m.sessions[s] = struct{}{}
	s.onClose = m.untrack
	return true
}

func (m *Manager) untrack(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s)
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	if len(m.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range m.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
