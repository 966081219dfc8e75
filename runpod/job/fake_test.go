package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// scriptedRequester replies in order and records every request
type scriptedRequester struct {
	mu       sync.Mutex
	replies  []reply
	requests []*Request
}

type reply struct {
	body string
	err  error
}

func (s *scriptedRequester) Do(_ context.Context, req *Request) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return nil, errors.New("unexpected request " + req.Method + " " + req.URL)
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

func (s *scriptedRequester) calls() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Request(nil), s.requests...)
}

// fakeClock advances only when fakeSleep is called
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) sleep(waits *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		*waits = append(*waits, d)
		c.Advance(d)
		return nil
	}
}
