// Package middleware provides gin middleware shared by the HTTP server.
//
// Middleware order matters. The router installs them as:
//
//	Recovery -> RequestID -> Logger -> handlers
package middleware
