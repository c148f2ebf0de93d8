package daikin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/godaikin/internal/logging"
	"github.com/joshp123/godaikin/internal/rate"
)

const (
	endpointListDevices  = "gethomepageinfowithsubscription"
	endpointPublishState = "publishdevicestate"

	requestTypeList    = 1
	requestTypeDesired = 3
)

// TokenProvider yields the identity token sent with every request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the GO DAIKIN cloud API.
type Client struct {
	baseURL    string
	username   string
	tokens     TokenProvider
	guard      *rate.Guard
	httpClient *http.Client
	logger     *zap.Logger

	// cloudMu serializes calls so a patch is never interleaved with a listing.
	cloudMu   sync.Mutex
	lastList  time.Time
	lastPatch time.Time
}

func NewClient(cfg Config, tokens TokenProvider, logger *zap.Logger) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	guard := rate.NewGuard(cfg.RateLimits())
	return &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		tokens:     tokens,
		guard:      guard,
		httpClient: guard.Wrap(&http.Client{Timeout: timeout}),
		logger:     logging.OrNop(logger).Named("daikin"),
	}
}

type listRequest struct {
	RequestData struct {
		Type  int    `json:"type"`
		Value string `json:"value"`
	} `json:"requestData"`
}

type listResponse struct {
	Data []Aircond `json:"data"`
}

// ListDevices returns every unit on the account with its current shadow state.
func (c *Client) ListDevices(ctx context.Context) ([]Aircond, error) {
	var req listRequest
	req.RequestData.Type = requestTypeList
	req.RequestData.Value = c.username

	var out listResponse
	if err := c.doRequest(ctx, endpointListDevices, req, &out); err != nil {
		return nil, err
	}

	c.cloudMu.Lock()
	c.lastList = time.Now()
	c.cloudMu.Unlock()

	c.logger.Debug("listed devices", zap.Int("count", len(out.Data)))
	return out.Data, nil
}

type desiredRequest struct {
	RequestData desiredRequestData `json:"requestData"`
}

type desiredRequestData struct {
	Type      int    `json:"type"`
	Username  string `json:"username"`
	ThingName string `json:"thingName"`
	Key       string `json:"key"`
	Payload   struct {
		State struct {
			Desired DesiredState `json:"desired"`
		} `json:"state"`
	} `json:"payload"`
}

// PatchState pushes a partial desired state to one unit.
func (c *Client) PatchState(ctx context.Context, uniqueID, thingName, shadowKey string, state DesiredState) error {
	req := desiredRequest{RequestData: desiredRequestData{
		Type:      requestTypeDesired,
		Username:  c.username,
		ThingName: thingName,
		Key:       shadowKey,
	}}
	req.RequestData.Payload.State.Desired = state

	var ack json.RawMessage
	if err := c.doRequest(ctx, endpointPublishState, req, &ack); err != nil {
		return err
	}

	c.cloudMu.Lock()
	c.lastPatch = time.Now()
	c.cloudMu.Unlock()

	c.logger.Debug("patched state",
		zap.String("unit", uniqueID),
		zap.Any("desired", state),
		zap.ByteString("response", ack),
	)
	return nil
}

// LastActivity reports when the last listing and patch succeeded.
func (c *Client) LastActivity() (listed, patched time.Time) {
	c.cloudMu.Lock()
	defer c.cloudMu.Unlock()
	return c.lastList, c.lastPatch
}

// Health summarizes the cloud session.
type Health struct {
	TokenExpiry time.Time `json:"token_expiry,omitzero"`
	LastList    time.Time `json:"last_list,omitzero"`
	LastPatch   time.Time `json:"last_patch,omitzero"`
	LastStatus  int       `json:"last_status,omitzero"`
}

// Health reports the credential expiry when the token provider knows it.
func (c *Client) Health() Health {
	listed, patched := c.LastActivity()
	h := Health{LastList: listed, LastPatch: patched, LastStatus: c.guard.LastStatus()}
	if exp, ok := c.tokens.(interface{ ExpiresAt() time.Time }); ok {
		h.TokenExpiry = exp.ExpiresAt()
	}
	return h
}

func (c *Client) doRequest(ctx context.Context, endpoint string, payload, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("authorization", token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	c.cloudMu.Lock()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.cloudMu.Unlock()
		return &APIError{Endpoint: endpoint, Err: err}
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	c.cloudMu.Unlock()
	if err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= 300 {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
