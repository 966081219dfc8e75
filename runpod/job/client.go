package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ncobase/runpod/ecode"
	"github.com/ncobase/runpod/logging/logger"
)

// DefaultBaseURL is the public inference host.
const DefaultBaseURL = "https://api.runpod.ai"

// Request is a single provider call handed to a Requester.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// JSON asks the requester to decode the reply as JSON
	JSON bool
}

// Requester executes a Request and returns the decoded JSON reply.
// Non-2xx replies and network failures are returned as errors.
type Requester interface {
	Do(ctx context.Context, req *Request) (json.RawMessage, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

func (f RequesterFunc) Do(ctx context.Context, req *Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Client issues run, runsync and status calls. It holds no per-job state.
type Client struct {
	requester Requester
	baseURL   string
	log       *logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the inference host, e.g. for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithClientLogger sets the logger used for request tracing.
func WithClientLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a job client on top of requester.
func NewClient(requester Requester, opts ...ClientOption) *Client {
	c := &Client{
		requester: requester,
		baseURL:   DefaultBaseURL,
		log:       logger.StdLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitSync runs a job on the runsync endpoint. The returned status may be
// non-terminal if the provider handed the job over to async processing.
func (c *Client) SubmitSync(ctx context.Context, req JobRequest, apiKey string) (*JobResponse, error) {
	return c.submit(ctx, "runsync", req, apiKey)
}

// SubmitAsync queues a job on the run endpoint.
func (c *Client) SubmitAsync(ctx context.Context, req JobRequest, apiKey string) (*JobResponse, error) {
	return c.submit(ctx, "run", req, apiKey)
}

// GetStatus fetches the current state of a job.
func (c *Client) GetStatus(ctx context.Context, modelID, jobID, apiKey string) (*JobResponse, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey()
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, &ProtocolError{Reason: ecode.FieldIsRequired("model id")}
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, &ProtocolError{Reason: ecode.FieldIsRequired("job id")}
	}

	return c.call(ctx, &Request{
		Method:  http.MethodGet,
		URL:     c.endpoint(modelID, "status", jobID),
		Headers: headers(apiKey),
		JSON:    true,
	})
}

func (c *Client) submit(ctx context.Context, action string, req JobRequest, apiKey string) (*JobResponse, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := req.body()
	if err != nil {
		return nil, &ProtocolError{Reason: "encode request", Err: err}
	}

	return c.call(ctx, &Request{
		Method:  http.MethodPost,
		URL:     c.endpoint(req.ModelID, action),
		Headers: headers(apiKey),
		Body:    body,
		JSON:    true,
	})
}

func (c *Client) call(ctx context.Context, req *Request) (*JobResponse, error) {
	c.log.Debug(ctx, "provider request", "method", req.Method, "url", req.URL)

	raw, err := c.requester.Do(ctx, req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &TransportError{Err: err}
	}

	var resp JobResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &TransportError{Err: errors.New("malformed response body: " + err.Error())}
	}

	c.log.Debug(ctx, "provider response", "url", req.URL, "job_id", resp.ID, "status", string(resp.Status))
	return &resp, nil
}

func (c *Client) endpoint(modelID string, parts ...string) string {
	segs := make([]string, 0, len(parts)+3)
	segs = append(segs, c.baseURL, "v2", url.PathEscape(modelID))
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return strings.Join(segs, "/")
}

func headers(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}
}
