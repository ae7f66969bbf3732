package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch-io/seawatch/internal/relay/auth"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/internal/relay/core/service"
	"github.com/seawatch-io/seawatch/internal/relay/forwarder"
	"github.com/seawatch-io/seawatch/internal/relay/inventory"
	"github.com/seawatch-io/seawatch/internal/relay/registry"
	"github.com/seawatch-io/seawatch/internal/relay/session"
	"github.com/seawatch-io/seawatch/pkg/options"
)

const signingKey = "0123456789abcdef0123456789abcdef"

type users map[string][]byte

func (u users) GetUser(_ context.Context, name string) (*core.User, error) {
	hash, ok := u[name]
	if !ok {
		return nil, core.ErrUnauthorized
	}
	return &core.User{Username: name, PasswordHash: hash}, nil
}

type auditLog struct {
	mu        sync.Mutex
	telemetry []string
	commands  []string
}

func (a *auditLog) LogTelemetry(s *model.TelemetrySample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.telemetry = append(a.telemetry, s.VehicleID)
}

func (a *auditLog) LogCommand(c *model.Command) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, c.VehicleID)
}

func (a *auditLog) telemetryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.telemetry)
}

type gateway struct {
	srv *httptest.Server
	got chan model.GatewayCommand
}

func newGateway(t *testing.T) *gateway {
	g := &gateway{got: make(chan model.GatewayCommand, 4)}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cmd model.GatewayCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err == nil {
			g.got <- cmd
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

type relay struct {
	srv     *httptest.Server
	reg     *registry.Registry
	audit   *auditLog
	gateway *gateway
	server  *Server
}

func newRelay(t *testing.T, configure ...func(*options.RelayOptions)) *relay {
	t.Helper()

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	guard, err := auth.NewGuard(auth.Config{SigningKey: []byte(signingKey), Issuer: "seawatch-relay", TTL: time.Hour}, users{"alice": hash})
	require.NoError(t, err)

	r := &relay{reg: registry.New(), audit: &auditLog{}, gateway: newGateway(t)}
	inv := inventory.NewStatic(map[string]string{
		"B001": r.gateway.srv.URL,
		"B002": r.gateway.srv.URL,
	})
	svc := service.New(inv, r.reg, forwarder.NewHTTP(r.gateway.srv.Client()), r.audit, service.Options{ForwardTimeout: time.Second})
	viewers := session.NewManager(session.Config{}, r.reg, guard, svc)

	relayOpts := options.NewRelayOptions()
	for _, c := range configure {
		c(relayOpts)
	}
	r.server = NewServer(options.NewHttpOptions(), relayOpts, Deps{
		Ingester: svc,
		Guard:    guard,
		Viewers:  viewers,
		Vehicles: inv,
		Checks: map[string]Check{
			"inventory": func(context.Context) error { return nil },
		},
	})

	r.srv = httptest.NewServer(r.server.Handler())
	t.Cleanup(func() {
		viewers.Shutdown()
		r.srv.Close()
	})
	return r
}

func (r *relay) login(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(r.srv.URL+"/api/login", "application/json", strings.NewReader(`{"username":"alice","password":"s3cret"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cred auth.Credential
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cred))
	return cred.AccessToken
}

func (r *relay) post(t *testing.T, contentType, body string, header http.Header) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, r.srv.URL+"/api/telemetry", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func (r *relay) viewer(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, msg, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message %q", msg)
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "expected read timeout, got %v", err)
}

func TestTelemetryFanOut(t *testing.T) {
	r := newRelay(t)
	token := r.login(t)

	v1 := r.viewer(t, "/ws/B001?token="+token)
	v2 := r.viewer(t, "/ws/B002?token="+token)
	all := r.viewer(t, "/ws/all?token="+token)
	require.Eventually(t, func() bool {
		return r.reg.Count("B001") == 1 && r.reg.Count("B002") == 1 && r.reg.AllCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	const b1 = "B001,10.76,106.70,90,95,1500,1500"
	require.Equal(t, http.StatusOK, r.post(t, "text/plain", b1, bearer(token)))
	require.Equal(t, http.StatusOK, r.post(t, "application/json",
		`{"boatId":"B002","lat":10.8,"lon":106.6,"head":1,"targetHead":2,"leftSpeed":1500,"rightSpeed":1500}`, bearer(token)))

	assert.Equal(t, b1, readText(t, v1))
	assert.Equal(t, b1, readText(t, all))
	assert.Contains(t, readText(t, all), `"vehicleId":"B002"`)

	// The first thing the B002 viewer sees is its own vehicle's sample.
	var sample model.TelemetrySample
	require.NoError(t, json.Unmarshal([]byte(readText(t, v2)), &sample))
	assert.Equal(t, "B002", sample.VehicleID)

	// A timed-out read poisons the connection, so this check goes last.
	assertSilent(t, v1)

	assert.Eventually(t, func() bool { return r.audit.telemetryCount() == 2 }, time.Second, 10*time.Millisecond)
}

func TestViewerCommandReachesGateway(t *testing.T) {
	r := newRelay(t)
	token := r.login(t)

	v := r.viewer(t, "/ws/B001?token="+token)
	require.Eventually(t, func() bool { return r.reg.Count("B001") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, v.WriteMessage(websocket.TextMessage, []byte("B001,1,1600,10.5,106.7,1.2,0.1,0.05")))

	select {
	case cmd := <-r.gateway.got:
		assert.Equal(t, "B001", cmd.BoatID)
		assert.Equal(t, 1600, cmd.Speed)
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never received the command")
	}
}

func TestViewerWithoutCredential(t *testing.T) {
	r := newRelay(t)

	conn := r.viewer(t, "/ws/B001")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()

	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce), "expected close frame, got %v", err)
	assert.Equal(t, session.CloseUnauthorized, ce.Code)
	assert.Equal(t, 0, r.reg.Len())
}

func TestViewerWithoutTarget(t *testing.T) {
	r := newRelay(t)
	token := r.login(t)

	for _, path := range []string{"/ws?token=", "/ws/?token="} {
		conn := r.viewer(t, path+token)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()

		var ce *websocket.CloseError
		require.True(t, errors.As(err, &ce), "%s: expected close frame, got %v", path, err)
		assert.Equal(t, session.CloseMissingTarget, ce.Code, path)
	}
	assert.Equal(t, 0, r.reg.Len())
}

func TestTelemetryStatuses(t *testing.T) {
	r := newRelay(t)
	h := bearer(r.login(t))

	assert.Equal(t, http.StatusBadRequest, r.post(t, "text/plain", "B001,north,2", h))
	assert.Equal(t, http.StatusOK, r.post(t, "text/plain", "B001,1,2,3,4,5,6", h))
	assert.Equal(t, http.StatusNotFound, r.post(t, "text/plain", "B404,1,2,3,4,5,6", h))
	assert.Equal(t, http.StatusRequestEntityTooLarge, r.post(t, "text/plain", "B001,"+strings.Repeat("1", 5000), h))

	assert.Equal(t, 1, r.audit.telemetryCount())
}

func TestTelemetryRequiresCredential(t *testing.T) {
	r := newRelay(t)

	assert.Equal(t, http.StatusUnauthorized, r.post(t, "text/plain", "B001,1,2,3,4,5,6", nil))
	assert.Equal(t, http.StatusUnauthorized, r.post(t, "text/plain", "B001,1,2,3,4,5,6", bearer("not-a-jwt")))
	assert.Equal(t, http.StatusUnauthorized, r.post(t, "text/plain", "B001,1,2,3,4,5,6",
		http.Header{GatewayKeyHeader: {"anything"}}))
	assert.Equal(t, 0, r.audit.telemetryCount())

	assert.Equal(t, http.StatusOK, r.post(t, "text/plain", "B001,1,2,3,4,5,6", bearer(r.login(t))))

	open := newRelay(t, func(o *options.RelayOptions) { o.AllowAnonymousIngest = true })
	assert.Equal(t, http.StatusOK, open.post(t, "text/plain", "B001,1,2,3,4,5,6", nil))
}

func TestTelemetryGatewayKey(t *testing.T) {
	r := newRelay(t, func(o *options.RelayOptions) { o.GatewayKey = "gw-secret" })

	assert.Equal(t, http.StatusUnauthorized, r.post(t, "text/plain", "B001,1,2,3,4,5,6", nil))
	assert.Equal(t, http.StatusUnauthorized, r.post(t, "text/plain", "B001,1,2,3,4,5,6",
		http.Header{GatewayKeyHeader: {"wrong"}}))
	assert.Equal(t, http.StatusOK, r.post(t, "text/plain", "B001,1,2,3,4,5,6",
		http.Header{GatewayKeyHeader: {"gw-secret"}}))
	// A bearer token is still accepted when a gateway key is configured.
	assert.Equal(t, http.StatusOK, r.post(t, "text/plain", "B001,1,2,3,4,5,6", bearer(r.login(t))))
}

func TestTelemetryOrderPerVehicle(t *testing.T) {
	r := newRelay(t)
	token := r.login(t)

	v := r.viewer(t, "/ws/B001?token="+token)
	require.Eventually(t, func() bool { return r.reg.Count("B001") == 1 }, 2*time.Second, 10*time.Millisecond)

	const n = 20
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line := fmt.Sprintf("B001,10.%d,106.70,%d,90,1500,1500", i, i)
		want = append(want, line)
		require.Equal(t, http.StatusOK, r.post(t, "text/plain", line, bearer(token)))
	}

	got := make([]string, 0, n)
	for i := 0; i < n; i++ {
		got = append(got, readText(t, v))
	}
	assert.Equal(t, want, got)
}

func TestLogin(t *testing.T) {
	r := newRelay(t)

	cases := map[string]struct {
		body string
		want int
	}{
		"bad password":  {`{"username":"alice","password":"nope"}`, http.StatusUnauthorized},
		"unknown user":  {`{"username":"mallory","password":"s3cret"}`, http.StatusUnauthorized},
		"not json":      {`username=alice`, http.StatusBadRequest},
		"good password": {`{"username":"alice","password":"s3cret"}`, http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(r.srv.URL+"/api/login", "application/json", bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestVehiclesRequireAuth(t *testing.T) {
	r := newRelay(t)

	resp, err := http.Get(r.srv.URL + "/api/vehicles")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, r.srv.URL+"/api/vehicles", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+r.login(t))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vehicles []model.Vehicle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vehicles))
	require.Len(t, vehicles, 2)
	assert.Equal(t, "B001", vehicles[0].ID)
}

func TestProbes(t *testing.T) {
	r := newRelay(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(r.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	r.server.deps.Checks["mqtt"] = func(context.Context) error { return errors.New("disconnected") }
	resp, err := http.Get(r.srv.URL + "/readyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "mqtt")
}

func TestStartAndShutdown(t *testing.T) {
	opts := options.NewHttpOptions()
	opts.Addr = "127.0.0.1:0"
	srv := NewServer(opts, options.NewRelayOptions(), Deps{Viewers: &nopViewers{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

type nopViewers struct{ http.Handler }

func (nopViewers) Shutdown() {}
