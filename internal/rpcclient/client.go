// Package rpcclient provides an HTTP client for a walletd daemon.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Klingon-tech/klingnet-wallet/internal/router"
)

// Client is a walletd HTTP client covering both the provider and the
// operator surfaces.
type Client struct {
	base   string
	origin string
	http   *http.Client
	nextID int
}

// New creates a client targeting the given base URL
// (e.g. "http://127.0.0.1:8560").
func New(base string) *Client {
	return NewWithTimeout(base, 10*time.Second)
}

// NewWithTimeout creates a client with a custom HTTP timeout. Provider
// calls can block on an approval prompt, so callers driving those
// should pass a timeout above the approval ceiling.
func NewWithTimeout(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:   base,
		origin: "cli://wallet-cli",
		http: &http.Client{
			Timeout: timeout,
		},
		nextID: 1,
	}
}

// SetOrigin overrides the Origin header sent with provider calls.
func (c *Client) SetOrigin(origin string) {
	c.origin = origin
}

// envelope mirrors the server's response shape.
type envelope struct {
	OK     bool            `json:"ok"`
	ID     interface{}     `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// APIError is returned when the daemon responds with an error.
type APIError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Call invokes a provider method through POST /rpc and unmarshals the
// result into the provided pointer. If result is nil, the response
// result is discarded.
func (c *Client) Call(method string, params, result interface{}) error {
	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		rawParams = b
	}

	id := c.nextID
	c.nextID++

	body, err := json.Marshal(struct {
		ID     int             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}{ID: id, Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.base+"/rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", c.origin)

	return c.do(req, result)
}

// Approvals lists prompts awaiting an answer.
func (c *Client) Approvals() ([]router.PendingInfo, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+"/approvals", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var pending []router.PendingInfo
	if err := c.do(req, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// Respond answers one pending prompt.
func (c *Client) Respond(resp router.ApprovalResponse) error {
	return c.post("/approvals/respond", resp, nil)
}

// Control invokes an operator action, e.g. "unlock" or "status".
// Params and result may be nil.
func (c *Client) Control(action string, params, result interface{}) error {
	if action == "status" {
		req, err := http.NewRequest(http.MethodGet, c.base+"/control/status", nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		return c.do(req, result)
	}
	return c.post("/control/"+action, params, result)
}

func (c *Client) post(path string, params, result interface{}) error {
	var body []byte
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		body = b
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		return env.Error
	}
	if !env.OK {
		return fmt.Errorf("daemon reported failure without error detail")
	}

	if result != nil && env.Result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
