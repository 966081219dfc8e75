// Package job talks to Runpod public endpoints.
//
// Client wraps the three job calls (runsync, run, status) with bearer
// authentication and uniform error translation; Poller drives an async job
// to a terminal state within a bounded time budget. The HTTP exchange itself
// is delegated to a Requester so hosts can plug in their own transport.
package job
