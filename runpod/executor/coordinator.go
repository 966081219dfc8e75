package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/runpod/ctxutil"
	"github.com/ncobase/runpod/ecode"
	"github.com/ncobase/runpod/logging/logger"
	"github.com/ncobase/runpod/metrics"
	"github.com/ncobase/runpod/runpod/catalog"
	"github.com/ncobase/runpod/runpod/job"
)

// ItemError attributes a failure to the work item at Index.
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string { return fmt.Sprintf("item %d: %v", e.Index, e.Err) }

func (e *ItemError) Unwrap() error { return e.Err }

func (e *ItemError) Code() int { return ecode.Of(e.Err) }

// Result is the outcome of one work item: JSON on success, Err otherwise.
type Result struct {
	Index int
	JSON  Record
	Err   error
}

type resultError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MarshalJSON renders {"index", "json"} or {"index", "error"}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Index int          `json:"index"`
		JSON  Record       `json:"json,omitempty"`
		Error *resultError `json:"error,omitempty"`
	}{Index: r.Index, JSON: r.JSON}

	if r.Err != nil {
		cause := r.Err
		var ie *ItemError
		if errors.As(cause, &ie) {
			cause = ie.Err
		}
		out.Error = &resultError{Code: ecode.Of(cause), Message: cause.Error()}
	}
	return json.Marshal(out)
}

// RunOptions control one invocation.
type RunOptions struct {
	// FailFast stops after the first failed item
	FailFast bool
	// Credentials overrides the coordinator's key source for this run
	Credentials Credentials
}

// Coordinator runs work items against the job client and lists models.
type Coordinator struct {
	client  *job.Client
	poller  *job.Poller
	catalog *catalog.Cache
	creds   Credentials
	log     *logger.Logger
	metrics *metrics.Collector

	// polling used when an item sets neither pollMs nor timeoutSeconds
	defaults job.PollOptions
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPoller replaces the poller built from the client.
func WithPoller(p *job.Poller) Option {
	return func(c *Coordinator) { c.poller = p }
}

// WithPollDefaults sets the interval and timeout items fall back to.
func WithPollDefaults(o job.PollOptions) Option {
	return func(c *Coordinator) { c.defaults = o.Normalize() }
}

// WithMetrics records item outcomes and catalog fallbacks.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// NewCoordinator wires the job client, catalog cache and credential source.
func NewCoordinator(client *job.Client, cache *catalog.Cache, creds Credentials, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:   client,
		catalog:  cache,
		creds:    creds,
		log:      logger.StdLogger(),
		defaults: job.PollOptions{}.Normalize(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poller == nil {
		c.poller = job.NewPoller(client, job.WithPollerLogger(c.log))
	}
	return c
}

// Run processes params.Len() items sequentially in index order. Every
// processed item yields a Result; with FailFast the results end at the
// first failure.
func (c *Coordinator) Run(ctx context.Context, params Params, opts RunOptions) []Result {
	ctx, _ = ctxutil.EnsureTraceID(ctx)
	ctx = ctxutil.SetInvocationID(ctx, uuid.NewString())

	n := params.Len()
	results := make([]Result, 0, n)
	if n == 0 {
		return results
	}

	creds := c.creds
	if opts.Credentials != nil {
		creds = opts.Credentials
	}
	apiKey, keyErr := resolveKey(ctx, creds)
	c.metrics.RecordInvocation()
	failed := 0
	for i := 0; i < n; i++ {
		itemCtx := ctxutil.SetItemIndex(ctx, i)
		start := time.Now()

		var (
			rec Record
			err error
		)
		if keyErr != nil {
			err = keyErr
		} else {
			rec, err = c.runItem(itemCtx, params, i, apiKey)
		}
		c.metrics.RecordItem(operationLabel(params, i), time.Since(start), err)

		if err != nil {
			failed++
			c.log.Warn(itemCtx, "item failed", "error", err, "code", ecode.Of(err))
			results = append(results, Result{Index: i, Err: &ItemError{Index: i, Err: err}})
			if opts.FailFast {
				break
			}
			continue
		}

		c.log.Info(itemCtx, "item completed", "duration_ms", time.Since(start).Milliseconds())
		results = append(results, Result{Index: i, JSON: rec})
	}

	c.log.Info(ctx, "invocation finished", "items", n, "processed", len(results), "failed", failed)
	return results
}

func operationLabel(params Params, i int) string {
	op := catalog.Operation(strings.TrimSpace(params.String(ParamOperation, i, "")))
	if !op.Valid() {
		return "unknown"
	}
	return string(op)
}

// resolveKey reads the credential once per invocation.
func resolveKey(ctx context.Context, creds Credentials) (string, error) {
	if creds == nil {
		return "", job.ErrMissingAPIKey()
	}
	key, err := creds.APIKey(ctx)
	if err != nil {
		return "", &job.ConfigurationError{Reason: "Runpod API key is required: " + err.Error()}
	}
	if strings.TrimSpace(key) == "" {
		return "", job.ErrMissingAPIKey()
	}
	return key, nil
}

func (c *Coordinator) runItem(ctx context.Context, params Params, i int, apiKey string) (Record, error) {
	op := catalog.Operation(strings.TrimSpace(params.String(ParamOperation, i, "")))
	if !op.Valid() {
		return nil, &job.ProtocolError{Reason: fmt.Sprintf("unknown operation %q", op)}
	}
	modelID := strings.TrimSpace(params.String(ParamModelID, i, ""))
	if modelID == "" {
		return nil, &job.ProtocolError{Reason: ecode.FieldIsRequired("model id")}
	}
	download := params.Bool(ParamDownload, i, false)

	var (
		resp *job.JobResponse
		err  error
	)
	if op == catalog.OpStatus {
		jobID := strings.TrimSpace(params.String(ParamJobID, i, ""))
		if jobID == "" {
			return nil, &job.ProtocolError{Reason: ecode.FieldIsRequired("job id")}
		}
		resp, err = c.client.GetStatus(ctx, modelID, jobID, apiKey)
	} else {
		input, ierr := resolveInput(params.String(ParamInputJSON, i, ""), modelID, op)
		if ierr != nil {
			return nil, ierr
		}
		req := job.JobRequest{ModelID: modelID, Input: input}
		if params.Bool(ParamWait, i, false) {
			resp, err = c.poller.Run(ctx, req, apiKey, job.PollOptions{
				Interval: time.Duration(params.Number(ParamPollMs, i, float64(c.defaults.Interval.Milliseconds()))) * time.Millisecond,
				Timeout:  time.Duration(params.Number(ParamTimeoutSeconds, i, c.defaults.Timeout.Seconds()) * float64(time.Second)),
			})
		} else {
			resp, err = c.client.SubmitSync(ctx, req, apiKey)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := resp.Check(); err != nil {
		return nil, err
	}

	return BuildOutput(resp, modelID, download)
}

// resolveInput substitutes the default template for empty input and
// rejects anything that is not a JSON object.
func resolveInput(raw, modelID string, op catalog.Operation) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultInput(modelID, op), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, &job.ProtocolError{Reason: "invalid input JSON", Err: err}
	}
	if obj == nil {
		return nil, &job.ProtocolError{Reason: "invalid input JSON", Err: errors.New("input must be a JSON object")}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return nil, &job.ProtocolError{Reason: "invalid input JSON", Err: err}
	}
	return buf.Bytes(), nil
}

// ListModels returns the models an operation can use. Discovery problems
// and empty categories fall back to the built-in catalog, so the result is
// never empty.
func (c *Coordinator) ListModels(ctx context.Context, op catalog.Operation) []catalog.Entry {
	if c.catalog == nil {
		return catalog.FallbackModels(op)
	}

	ids, err := c.catalog.GetModels(ctx)
	if err != nil {
		c.log.Warn(ctx, "using fallback model catalog", "operation", string(op), "error", err)
		c.metrics.AddCounter(metrics.CatalogFallbacks, 1, metrics.Label{Name: "reason", Value: "discovery"})
		return catalog.FallbackModels(op)
	}

	entries := catalog.Select(catalog.Categorize(ids), op)
	if len(entries) == 0 {
		c.log.Warn(ctx, "no discovered models for operation, using fallback", "operation", string(op))
		c.metrics.AddCounter(metrics.CatalogFallbacks, 1, metrics.Label{Name: "reason", Value: "empty"})
		return catalog.FallbackModels(op)
	}
	return entries
}

// InvalidateModels drops the cached catalog.
func (c *Coordinator) InvalidateModels(ctx context.Context) error {
	if c.catalog == nil {
		return nil
	}
	return c.catalog.Invalidate(ctx)
}
