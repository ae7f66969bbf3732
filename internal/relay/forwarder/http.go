// Package forwarder delivers viewer commands to vehicle gateways.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// CommandPath is where a gateway control server accepts commands.
const CommandPath = "/command"

// HTTP posts commands as JSON to http://{gateway}/command.
type HTTP struct {
	client *http.Client
	logger log.Logger
}

var _ core.Forwarder = (*HTTP)(nil)

// NewHTTP returns an HTTP forwarder. A nil client uses http.DefaultClient;
// per-request deadlines come from the caller's context.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, logger: log.WithName("forwarder-http")}
}

func (f *HTTP) Forward(ctx context.Context, gateway string, cmd *model.Command) error {
	body, err := json.Marshal(cmd.Gateway())
	if err != nil {
		return err
	}

	url := CommandURL(gateway)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway %s answered %d: %s", gateway, resp.StatusCode, strings.TrimSpace(string(reply)))
	}

	f.logger.Debug("Command accepted by gateway", "gateway", gateway, "vehicle", cmd.VehicleID, "command", cmd.ID)
	return nil
}

// CommandURL turns a gateway address (host:port or a full URL) into its
// command endpoint.
func CommandURL(gateway string) string {
	base := strings.TrimSuffix(gateway, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + CommandPath
}
