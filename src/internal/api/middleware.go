package api

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
}

// Logger middleware logs all HTTP requests at debug level.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Capture the status code written by the handler
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Debugf("[API] %s %s - %d (%v)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// Recovery middleware recovers from panics and returns a 500 error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("[API] Panic recovered: %v", err)
				WriteInternalError(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// PrivateSubnetOnly middleware rejects clients outside loopback and private
// networks, so the API can bind to 0.0.0.0 on a router.
func PrivateSubnetOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := netip.ParseAddrPort(r.RemoteAddr)
		if err != nil {
			log.Warnf("[API] Invalid client address: %s", r.RemoteAddr)
			WriteForbidden(w, "Access denied")
			return
		}

		if !isPrivate(addr.Addr()) {
			log.Warnf("[API] Access denied from non-private IP: %s", addr.Addr())
			WriteForbidden(w, "Access denied: only private networks are allowed")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isPrivate(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, prefix := range privatePrefixes {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
