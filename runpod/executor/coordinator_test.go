package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ncobase/runpod/ecode"
	"github.com/ncobase/runpod/runpod/catalog"
	"github.com/ncobase/runpod/runpod/job"
)

// routeRequester answers by URL suffix and records requests
type routeRequester struct {
	mu       sync.Mutex
	routes   map[string][]string
	fail     map[string]error
	requests []*job.Request
}

func newRouteRequester() *routeRequester {
	return &routeRequester{routes: map[string][]string{}, fail: map[string]error{}}
}

func (r *routeRequester) on(suffix string, bodies ...string) *routeRequester {
	r.routes[suffix] = append(r.routes[suffix], bodies...)
	return r
}

func (r *routeRequester) Do(_ context.Context, req *job.Request) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	for suffix, err := range r.fail {
		if strings.HasSuffix(req.URL, suffix) {
			return nil, err
		}
	}
	for suffix, bodies := range r.routes {
		if strings.HasSuffix(req.URL, suffix) && len(bodies) > 0 {
			r.routes[suffix] = bodies[1:]
			return json.RawMessage(bodies[0]), nil
		}
	}
	return nil, errors.New("no route for " + req.URL)
}

func (r *routeRequester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func newCoordinator(r job.Requester, creds Credentials, cache *catalog.Cache) *Coordinator {
	client := job.NewClient(r)
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	poller := job.NewPoller(client, job.WithClock(clock), job.WithSleep(clock.sleep))
	return NewCoordinator(client, cache, creds, WithPoller(poller))
}

func decodeField(t *testing.T, rec Record, key string, v any) {
	t.Helper()
	raw, ok := rec[key]
	if !ok {
		t.Fatalf("record has no %q: %v", key, rec)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %q: %v", key, err)
	}
}

func TestRunFluxImageWithDownload(t *testing.T) {
	r := newRouteRequester().
		on("/run", `{"id":"job-9","status":"IN_QUEUE"}`).
		on("/status/job-9",
			`{"id":"job-9","status":"IN_PROGRESS"}`,
			`{"id":"job-9","status":"COMPLETED","output":{"image_url":"https://cdn.example/out.png","seed":42},"executionTime":3100,"delayTime":12}`,
		)
	c := newCoordinator(r, StaticKey("key"), nil)

	params := MapParams{{
		"operation": "generateImage",
		"modelId":   "black-forest-labs-flux-1-dev",
		"inputJson": "",
		"wait":      true,
		"download":  true,
	}}
	results := c.Run(context.Background(), params, RunOptions{})

	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	rec := results[0].JSON

	var modelID, status, url string
	decodeField(t, rec, "modelId", &modelID)
	decodeField(t, rec, "status", &status)
	decodeField(t, rec, "downloadUrl", &url)
	if modelID != "black-forest-labs-flux-1-dev" || status != "COMPLETED" || url != "https://cdn.example/out.png" {
		t.Errorf("record = modelId %q status %q url %q", modelID, status, url)
	}
	var execTime float64
	decodeField(t, rec, "executionTime", &execTime)
	if execTime != 3100 {
		t.Errorf("executionTime = %v", execTime)
	}

	// the run request carried the image template
	var body struct {
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal(r.requests[0].Body, &body); err != nil {
		t.Fatalf("run body: %v", err)
	}
	if body.Input["prompt"] != "A serene mountain landscape at sunset" || body.Input["width"] != float64(1024) {
		t.Errorf("input = %v", body.Input)
	}
	if r.count() != 3 {
		t.Errorf("requests = %d, want 3", r.count())
	}
}

func TestRunSyncWithoutDownload(t *testing.T) {
	r := newRouteRequester().on("/runsync", `{"id":"s1","status":"COMPLETED","output":{"audio_url":"https://a/b.mp3"}}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	results := c.Run(context.Background(), MapParams{{
		"operation": "generateAudio",
		"modelId":   "whisper-v3-large",
		"inputJson": map[string]any{"audio": "https://x/y.mp3"},
	}}, RunOptions{})

	if results[0].Err != nil {
		t.Fatalf("err = %v", results[0].Err)
	}
	if _, ok := results[0].JSON["downloadUrl"]; ok {
		t.Error("downloadUrl set without download flag")
	}
	if !strings.HasSuffix(r.requests[0].URL, "/v2/whisper-v3-large/runsync") {
		t.Errorf("url = %s", r.requests[0].URL)
	}
	if string(r.requests[0].Body) != `{"input":{"audio":"https://x/y.mp3"}}` {
		t.Errorf("body = %s", r.requests[0].Body)
	}
}

func TestRunStatus(t *testing.T) {
	r := newRouteRequester().on("/status/abc", `{"id":"abc","status":"IN_PROGRESS"}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	results := c.Run(context.Background(), MapParams{{
		"operation": "status",
		"modelId":   "wan-2-5",
		"jobId":     "abc",
	}}, RunOptions{})

	if results[0].Err != nil {
		t.Fatalf("err = %v", results[0].Err)
	}
	var status string
	decodeField(t, results[0].JSON, "status", &status)
	if status != "IN_PROGRESS" {
		t.Errorf("status = %q", status)
	}
	if r.requests[0].Method != "GET" {
		t.Errorf("method = %s", r.requests[0].Method)
	}
}

func TestRunPerItemErrors(t *testing.T) {
	r := newRouteRequester().
		on("/runsync", `{"id":"ok-1","status":"COMPLETED","output":{"text":"a"}}`, `{"id":"ok-2","status":"COMPLETED","output":{"text":"b"}}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	params := MapParams{
		{"operation": "generateText", "modelId": "qwen3-32b-awq", "inputJson": `{"prompt":"a"}`},
		{"operation": "generateText", "modelId": "qwen3-32b-awq", "inputJson": `{"prompt":`},
		{"operation": "status", "modelId": "qwen3-32b-awq"},
		{"operation": "generateText", "modelId": "qwen3-32b-awq", "inputJson": `{"prompt":"b"}`},
		{"operation": "explode", "modelId": "qwen3-32b-awq"},
	}
	results := c.Run(context.Background(), params, RunOptions{})

	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("results[%d].Index = %d", i, res.Index)
		}
	}
	if results[0].Err != nil || results[3].Err != nil {
		t.Errorf("unexpected errors: %v / %v", results[0].Err, results[3].Err)
	}
	for _, i := range []int{1, 2, 4} {
		var ie *ItemError
		if !errors.As(results[i].Err, &ie) || ie.Index != i {
			t.Errorf("results[%d].Err = %v, want ItemError with index", i, results[i].Err)
		}
		if !errors.Is(results[i].Err, job.ErrProtocol) {
			t.Errorf("results[%d].Err = %v, want ErrProtocol", i, results[i].Err)
		}
	}
	if r.count() != 2 {
		t.Errorf("requests = %d, want 2", r.count())
	}
}

func TestRunFailFast(t *testing.T) {
	r := newRouteRequester().on("/runsync", `{"id":"x","status":"COMPLETED","output":{}}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	params := MapParams{
		{"operation": "generateText", "modelId": "m", "inputJson": `[]`},
		{"operation": "generateText", "modelId": "m", "inputJson": `{}`},
	}
	results := c.Run(context.Background(), params, RunOptions{FailFast: true})

	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v", results)
	}
	if r.count() != 0 {
		t.Errorf("requests after failure = %d", r.count())
	}
}

func TestRunMissingAPIKey(t *testing.T) {
	r := newRouteRequester()
	for _, creds := range []Credentials{
		StaticKey(""),
		CredentialsFunc(func(context.Context) (string, error) { return "", errors.New("vault sealed") }),
		nil,
	} {
		c := newCoordinator(r, creds, nil)
		results := c.Run(context.Background(), MapParams{
			{"operation": "generateText", "modelId": "m"},
			{"operation": "generateText", "modelId": "m"},
		}, RunOptions{})

		if len(results) != 2 {
			t.Fatalf("results = %d", len(results))
		}
		for i, res := range results {
			if !errors.Is(res.Err, job.ErrConfiguration) {
				t.Errorf("results[%d].Err = %v, want ErrConfiguration", i, res.Err)
			}
			var ie *ItemError
			if !errors.As(res.Err, &ie) || ie.Index != i {
				t.Errorf("results[%d] not attributed", i)
			}
		}
	}
	if r.count() != 0 {
		t.Errorf("requests = %d, want 0", r.count())
	}
}

func TestRunPollingFailureAttributed(t *testing.T) {
	r := newRouteRequester().
		on("/run", `{"id":"j1","status":"IN_QUEUE"}`).
		on("/status/j1", `{"id":"j1","status":"FAILED"}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	results := c.Run(context.Background(), MapParams{
		{"operation": "generateVideo", "modelId": "wan-2-5", "wait": "true", "pollMs": 500, "timeoutSeconds": "30"},
	}, RunOptions{})

	if !errors.Is(results[0].Err, job.ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", results[0].Err)
	}
	if ecode.Of(results[0].Err) != ecode.JobFailed {
		t.Errorf("code = %d", ecode.Of(results[0].Err))
	}
}

func TestRunCompletedWithoutOutput(t *testing.T) {
	r := newRouteRequester().
		on("/runsync", `{"id":"j1","status":"COMPLETED"}`).
		on("/status/j2", `{"id":"j2","status":"COMPLETED","output":null}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	results := c.Run(context.Background(), MapParams{
		{"operation": "generateImage", "modelId": "black-forest-labs-flux-1-dev"},
		{"operation": "status", "modelId": "wan-2-5", "jobId": "j2"},
	}, RunOptions{})

	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for i, res := range results {
		if !errors.Is(res.Err, job.ErrProtocol) {
			t.Errorf("results[%d].Err = %v, want ErrProtocol", i, res.Err)
		}
		if res.JSON != nil {
			t.Errorf("results[%d].JSON = %v, want none", i, res.JSON)
		}
	}
}

func TestRunSyncFailedPassesThrough(t *testing.T) {
	r := newRouteRequester().on("/runsync", `{"id":"f1","status":"FAILED","error":"out of memory"}`)
	c := newCoordinator(r, StaticKey("key"), nil)

	results := c.Run(context.Background(), MapParams{
		{"operation": "generateText", "modelId": "qwen3-32b-awq", "inputJson": `{"prompt":"a"}`},
	}, RunOptions{})

	if results[0].Err != nil {
		t.Fatalf("err = %v", results[0].Err)
	}
	var status, msg string
	decodeField(t, results[0].JSON, "status", &status)
	decodeField(t, results[0].JSON, "error", &msg)
	if status != "FAILED" || msg != "out of memory" {
		t.Errorf("status = %q error = %q", status, msg)
	}
}

func TestResultMarshalJSON(t *testing.T) {
	ok := Result{Index: 0, JSON: Record{"modelId": json.RawMessage(`"m"`)}}
	b, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"index":0,"json":{"modelId":"m"}}` {
		t.Errorf("ok = %s", b)
	}

	failed := Result{Index: 3, Err: &ItemError{Index: 3, Err: &job.TimeoutError{JobID: "j", Elapsed: 61 * time.Second}}}
	b, err = json.Marshal(failed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Index int `json:"index"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Index != 3 || decoded.Error.Code != ecode.JobTimeout || decoded.Error.Message != "Job timed out after 61 seconds: j" {
		t.Errorf("failed = %s", b)
	}
}

func TestListModels(t *testing.T) {
	discovered := catalog.DiscovererFunc(func(context.Context) ([]string, error) {
		return []string{"qwen3-32b-awq", "sora-2-i2v", "seedream-v4-t2i"}, nil
	})
	c := newCoordinator(newRouteRequester(), StaticKey("k"), catalog.NewCache(discovered))

	video := c.ListModels(context.Background(), catalog.OpGenerateVideo)
	if len(video) != 1 || video[0].ModelID != "sora-2-i2v" || video[0].Option() != "Sora 2 I2V (Video)" {
		t.Errorf("video = %+v", video)
	}

	// nothing discovered for audio
	audio := c.ListModels(context.Background(), catalog.OpGenerateAudio)
	if len(audio) != 1 || audio[0].ModelID != "whisper-v3-large" {
		t.Errorf("audio = %+v, want fallback", audio)
	}
}

func TestListModelsDiscoveryFailure(t *testing.T) {
	r := newRouteRequester()
	r.fail["/graphql"] = errors.New("503 service unavailable")
	cache := catalog.NewCache(catalog.NewGraphQLDiscoverer(r, StaticKey("")))
	c := newCoordinator(r, StaticKey("k"), cache)

	for _, op := range []catalog.Operation{catalog.OpGenerateText, catalog.OpGenerateImage, catalog.OpGenerateVideo, catalog.OpGenerateAudio, catalog.OpStatus, "bogus"} {
		got := c.ListModels(context.Background(), op)
		want := catalog.FallbackModels(op)
		if len(got) == 0 || len(got) != len(want) {
			t.Errorf("%s = %v, want fallback %v", op, got, want)
		}
	}
}

func TestRunCredentialsOverride(t *testing.T) {
	r := newRouteRequester().on("/runsync", `{"id":"x","status":"COMPLETED","output":{}}`)
	c := newCoordinator(r, StaticKey(""), nil)

	results := c.Run(context.Background(), MapParams{
		{"operation": "generateText", "modelId": "m", "inputJson": `{}`},
	}, RunOptions{Credentials: StaticKey("caller-key")})

	if results[0].Err != nil {
		t.Fatalf("err = %v", results[0].Err)
	}
	if got := r.requests[0].Headers["Authorization"]; got != "Bearer caller-key" {
		t.Errorf("Authorization = %q", got)
	}
}
