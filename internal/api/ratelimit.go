package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// limitKeyPrefix is the rate-limit key space of API clients, kept apart
// from the coordinator's trigger sources.
const limitKeyPrefix = "api:"

// rateLimited returns operation middleware that answers 429 when the
// client exceeds the server's limiter. It is a no-op without a limiter.
func (s *Server) rateLimited() huma.Middlewares {
	if s.limiter == nil {
		return nil
	}
	return huma.Middlewares{func(ctx huma.Context, next func(huma.Context)) {
		key := limitKeyPrefix + clientIP(ctx.RemoteAddr(), ctx.Header("X-Forwarded-For"))
		if !s.limiter.Allow(key) {
			s.logger.Warn("rate limit exceeded",
				"client", key,
				"path", ctx.URL().Path,
			)
			_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next(ctx)
	}}
}

// clientIP returns the first X-Forwarded-For hop, or the host of remoteAddr.
func clientIP(remoteAddr, forwardedFor string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
