// Package server hosts the ViewTube API from a single HTTP server.
//
// The server builds a consistent middleware chain of request IDs, logging,
// security headers, CORS, metrics, auth, and audit so handlers all share
// common protections and instrumentation. Audit runs after auth so mutating
// calls are attributed to the acting user.
package server
