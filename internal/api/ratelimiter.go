package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the number of per-client buckets; the least
// recently seen client is evicted first.
const maxTrackedClients = 4096

type rateLimiter interface {
	Allow(client string) bool
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	rps     rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
}

func newClientLimiter(ratePerSecond float64, burst int) *clientLimiter {
	return newClientLimiterSize(ratePerSecond, burst, maxTrackedClients)
}

func newClientLimiterSize(ratePerSecond float64, burst, size int) *clientLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	clients, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		// only returned for a non-positive size
		clients, _ = lru.New[string, *rate.Limiter](maxTrackedClients)
	}

	return &clientLimiter{
		rps:     rate.Limit(ratePerSecond),
		burst:   burst,
		clients: clients,
	}
}

func (l *clientLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}

	limiter, ok := l.clients.Get(client)
	if !ok {
		fresh := rate.NewLimiter(l.rps, l.burst)
		if prev, found, _ := l.clients.PeekOrAdd(client, fresh); found {
			limiter = prev
		} else {
			limiter = fresh
		}
	}
	return limiter.Allow()
}

// ParseTrustedProxies parses addresses and CIDR ranges of reverse proxies
// whose X-Forwarded-For header may be believed.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientKey identifies the client for rate limiting. The peer address is
// used unless the peer is a trusted proxy, in which case X-Forwarded-For is
// walked from the right to the first hop that is not itself trusted.
func clientKey(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(peer.Unmap(), trusted) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return host
		}
		if !isTrusted(addr.Unmap(), trusted) {
			return addr.Unmap().String()
		}
	}
	return host
}

func rateLimitMiddleware(limiter rateLimiter, trusted []netip.Prefix, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r, trusted)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
