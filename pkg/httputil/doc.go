// Package httputil provides the JSON response helpers, request parsing and
// middleware shared by the console agent's handlers.
//
// Responses:
//
//	httputil.WriteSuccess(w, snapshot)
//	httputil.WriteForbidden(w, "Insufficient permissions")
//
// Every error body has the shape {"error": "..."}.
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
