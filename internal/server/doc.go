// Package server is the HTTP surface of notedrop. It wires the routes to the
// auth, recovery and notes services, renders the embedded HTML pages, and
// carries the request id, access log, security header and metrics
// middleware.
package server
