// Package smsc implements a client for the SMSC.ru SMS/Viber gateway HTTP API.
//
// Basic usage:
//
//	client := smsc.New("alexey", "psw")
//	msg, err := smsc.NewSMSMessage("Hello, World!")
//	if err != nil { ... }
//	res, err := client.Send(ctx, []string{"79999999999"}, msg)
//	if err != nil { ... }
//	fmt.Println(res.Count, res.Cost)
//
// Transport failures come back as Go errors rooted at ErrClient; business
// failures reported by the gateway itself live on the response's Err field.
package smsc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBaseURL is the production gateway endpoint prefix.
const DefaultBaseURL = "https://smsc.ru/sys/"

// DefaultSender is the sender id used when none is configured.
const DefaultSender = "SMSC.ru"

const (
	opSend       = "send"
	opGetCost    = "get_cost"
	opGetStatus  = "get_status"
	opGetBalance = "get_balance"
)

// Client talks to the SMSC.ru gateway. Construct it with New; the zero
// value is not usable. A Client is immutable after construction and safe
// for concurrent use as long as its http.Client is.
type Client struct {
	login      string
	password   string
	sender     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithSender overrides the default sender id. The sender is fixed per
// Client; there is no per-call override.
func WithSender(sender string) Option {
	return func(c *Client) { c.sender = sender }
}

// WithBaseURL points the client at a different gateway base URL,
// e.g. a test server. A trailing slash is appended when missing.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient injects the http.Client used for gateway calls.
// Timeouts and cancellation are delegated to it and to the per-call context.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger injects the logger. Without it the client logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newMetrics(reg) }
}

// New creates a Client for the given account. The password may be either
// the plain password or its MD5 hash in lower case, as the gateway
// accepts both.
func New(login, password string, opts ...Option) *Client {
	c := &Client{
		login:    login,
		password: password,
		sender:   DefaultSender,
		baseURL:  DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "smsc")
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	return c
}

func (c *Client) String() string {
	return fmt.Sprintf("<Client login=%q sender=%q>", c.login, c.sender)
}

// auth returns the parameters merged into every gateway call.
// fmt=3 selects the JSON response format.
func (c *Client) auth() url.Values {
	return url.Values{
		"login": {c.login},
		"psw":   {c.password},
		"fmt":   {"3"},
	}
}

// Send delivers the message to the given phone numbers and returns the
// gateway's reply. A non-200 gateway status yields a *GatewayError
// wrapping ErrSend; a business failure inside a 200 reply is reported on
// SendResponse.Err instead.
func (c *Client) Send(ctx context.Context, to []string, message *Message) (resp *SendResponse, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opSend, start, err) }()

	body, err := c.call(ctx, opSend, "send.php", c.sendParams(to, message, costModeDeliver))
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(opSend, body)
	if err != nil {
		return nil, err
	}
	return newSendResponse(obj), nil
}

// GetCost estimates the cost of the message without delivering it.
func (c *Client) GetCost(ctx context.Context, to []string, message *Message) (resp *CostResponse, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opGetCost, start, err) }()

	body, err := c.call(ctx, opGetCost, "send.php", c.sendParams(to, message, costModeEstimate))
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(opGetCost, body)
	if err != nil {
		return nil, err
	}
	return newCostResponse(obj), nil
}

// GetStatus queries delivery status for the given phone/message-id pairs.
// The gateway returns a JSON array on success; a JSON object in its place
// is a gateway-side failure and yields a *GatewayError wrapping
// ErrGetStatus even under HTTP 200. Element order is preserved.
func (c *Client) GetStatus(ctx context.Context, phones, msgIDs []string) (resp []*StatusResponse, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opGetStatus, start, err) }()

	params := c.auth()
	params.Set("charset", "utf-8")
	params.Set("all", "2")
	params.Set("phone", joinStatusList(phones))
	params.Set("id", joinStatusList(msgIDs))

	body, err := c.call(ctx, opGetStatus, "status.php", params)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &GatewayError{Op: opGetStatus, StatusCode: http.StatusOK, Body: body, Reason: "undecodable body"}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &GatewayError{Op: opGetStatus, StatusCode: http.StatusOK, Body: body, Reason: "expected a list of status objects"}
	}

	result := make([]*StatusResponse, 0, len(list))
	for _, elem := range list {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, &GatewayError{Op: opGetStatus, StatusCode: http.StatusOK, Body: body, Reason: "malformed status object"}
		}
		result = append(result, newStatusResponse(obj))
	}
	return result, nil
}

// GetBalance queries the current account balance.
func (c *Client) GetBalance(ctx context.Context) (resp *BalanceResponse, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(opGetBalance, start, err) }()

	params := c.auth()
	params.Set("cur", "1")

	body, err := c.call(ctx, opGetBalance, "balance.php", params)
	if err != nil {
		return nil, err
	}
	obj, err := decodeObject(opGetBalance, body)
	if err != nil {
		return nil, err
	}
	return newBalanceResponse(obj), nil
}

// Cost mode flags on send.php: 1 estimates only, 2 delivers and reports cost.
const (
	costModeEstimate = "1"
	costModeDeliver  = "2"
)

// sendParams builds the shared parameter set of Send and GetCost:
// auth + sender + cost mode + recipients + the encoded message.
func (c *Client) sendParams(to []string, message *Message, costMode string) url.Values {
	params := c.auth()
	params.Set("sender", c.sender)
	params.Set("cost", costMode)
	params.Set("phones", strings.Join(to, ","))
	for key, values := range message.Encode() {
		for _, value := range values {
			params.Set(key, value)
		}
	}
	return params
}

// joinStatusList reproduces the status endpoint's list shape: a single
// value is sent with a trailing comma, a multi-value list is comma-joined
// without one. The gateway requires this exact format.
func joinStatusList(items []string) string {
	if len(items) == 1 {
		return items[0] + ","
	}
	return strings.Join(items, ",")
}

// call performs one GET against the gateway and returns the raw body of a
// 200 reply. Any other status becomes a *GatewayError for the operation.
func (c *Client) call(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	requestID := uuid.NewString()
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", c.opSentinel(op), err)
	}

	c.logger.DebugContext(ctx, "calling gateway", "op", op, "endpoint", endpoint, "request_id", requestID)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "gateway request failed", "op", op, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%w: %v", c.opSentinel(op), err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.logger.WarnContext(ctx, "reading gateway response failed", "op", op, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%w: reading response: %v", c.opSentinel(op), err)
	}

	if httpResp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "gateway returned non-200 status",
			"op", op, "request_id", requestID, "status_code", httpResp.StatusCode)
		return nil, &GatewayError{
			Op:         op,
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       body,
		}
	}

	c.logger.DebugContext(ctx, "gateway replied", "op", op, "request_id", requestID, "body", string(body))
	return body, nil
}

func (c *Client) opSentinel(op string) error {
	return (&GatewayError{Op: op}).Unwrap()
}

// decodeObject decodes a 200 body that must be a single JSON object.
func decodeObject(op string, body []byte) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, &GatewayError{Op: op, StatusCode: http.StatusOK, Body: body, Reason: "undecodable body"}
	}
	return obj, nil
}
