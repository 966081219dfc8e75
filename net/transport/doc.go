// Package transport implements job.Requester over net/http.
//
// Every host gets its own gobreaker circuit breaker, and a counting
// limiter caps the number of requests in flight. Non-2xx replies become
// *StatusError carrying the status and an excerpt of the body.
package transport
