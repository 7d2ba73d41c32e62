// Package middleware provides request throttling for the console agent.
//
// RateLimiter keeps one token bucket per key. Throttle applies it per client
// address and answers 429 with Retry-After once the bucket is empty:
//
//	limiter := middleware.NewRateLimiter(middleware.LoginRateLimitConfig(10))
//	limiter.StartCleanup(ctx)
//	router.Handle("/api/session/login", middleware.Throttle(limiter)(loginHandler))
package middleware
