package middleware

import (
	"net"
	"net/http"

	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/util/logger"
)

// OriginGuard admits only requests whose socket address is loopback. It runs
// first in the chain, so disallowed callers never touch the secret guard or
// the rate counter.
type OriginGuard struct{}

func NewOriginGuard() *OriginGuard {
	return &OriginGuard{}
}

func (g *OriginGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := remoteAddrIP(r.RemoteAddr)
		if !isLoopback(ip) {
			logger.Warn("Origin guard blocked %s for %s %s", r.RemoteAddr, r.Method, r.URL.Path)
			writeError(w, http.StatusForbidden, models.CodeAccessDenied,
				"door control is only reachable from the local host")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isLoopback covers 127.0.0.0/8, ::1 and the v4-mapped form ::ffff:127.0.0.1.
// net.IP.IsLoopback already unwraps the mapped form.
func isLoopback(ip net.IP) bool {
	return ip != nil && ip.IsLoopback()
}
