// Package throttle rate-limits requests sent to a repository server
// with a token bucket from [golang.org/x/time/rate].
//
// Bulk archive requests are expensive for the server to assemble, so
// clients talking to shared instances usually wrap their transport:
//
//	rt, err := throttle.NewRoundTripper(2, 4, func() *slog.Logger { return logger }, http.DefaultTransport)
//
// A request that finds the bucket empty blocks until a token is
// available or its context ends.
package throttle
