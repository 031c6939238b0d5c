// Package rest serves the viewer state as JSON over HTTP and exposes the
// Prometheus metrics endpoint.
//
// Routes mirror the gRPC API: reads are GET requests, the draining feeds
// (events, raw lines) are GET requests that empty their queue, and operator
// actions are POST, PUT or DELETE requests.
package rest
