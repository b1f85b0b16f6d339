// Package server provides the HTTP presentation surface of triagemail:
// the login/logout/callback endpoints of the OAuth2 flow, the
// authenticated dashboard API (filtered email list and metrics
// snapshot), health endpoints for Kubernetes probes, and a dedicated
// Prometheus metrics server.
//
// Routing uses chi. Every protected route passes through the
// RequireSession middleware, which re-evaluates the route guard on each
// request; the guard result is never cached.
package server
