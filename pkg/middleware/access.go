package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/utafrali/contactbook/pkg/httputil"
)

// BanConfig lists clients that are refused before routing.
type BanConfig struct {
	// UserAgents are regular expressions matched against the User-Agent header.
	UserAgents []string
	// IPs are exact client addresses.
	IPs []string
}

// ClientBan rejects requests from banned user agents or IPs with 403
// {"detail":"You are banned"}. Invalid patterns are logged and skipped.
func ClientBan(cfg BanConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	var agents []*regexp.Regexp
	for _, p := range cfg.UserAgents {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn("invalid banned user agent pattern, skipping",
				slog.String("pattern", p),
				slog.String("error", err.Error()),
			)
			continue
		}
		agents = append(agents, re)
	}

	ips := make(map[string]struct{}, len(cfg.IPs))
	for _, ip := range cfg.IPs {
		if parsed := net.ParseIP(strings.TrimSpace(ip)); parsed != nil {
			ips[parsed.String()] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			_, banned := ips[ip]
			if !banned {
				ua := r.UserAgent()
				for _, re := range agents {
					if re.MatchString(ua) {
						banned = true
						break
					}
				}
			}

			if banned {
				logger.WarnContext(r.Context(), "banned client rejected",
					slog.String("ip", ip),
					slog.String("user_agent", r.UserAgent()),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Detail: "You are banned"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPAllowlist returns middleware that restricts access to requests from IPs
// within the configured CIDR ranges. Invalid CIDRs are logged and skipped.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	nets := parseCIDRs(cidrs, logger, "invalid allowlist CIDR, skipping")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := remoteHost(r)
			if !containsIP(nets, net.ParseIP(host)) {
				logger.Warn("access denied by IP allowlist",
					slog.String("ip", host),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
					Detail: "access restricted by IP allowlist",
					Code:   "FORBIDDEN",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type clientIPKey struct{}

// ClientAddress resolves the client IP once per request and stores it for
// ClientIP. Forwarding headers are honored only when the peer is inside one of
// trustedProxies; with none configured the peer address is the client.
func ClientAddress(trustedProxies []string, logger *slog.Logger) func(http.Handler) http.Handler {
	trusted := parseCIDRs(trustedProxies, logger, "invalid trusted proxy CIDR, skipping")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip)))
		})
	}
}

// ClientIP returns the address resolved by ClientAddress, or the peer address
// when that middleware did not run.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return remoteHost(r)
}

// resolveClientIP walks X-Forwarded-For from the right and returns the first
// hop that is not a trusted proxy. A malformed hop ends the walk at the last
// address that was still vouched for.
func resolveClientIP(r *http.Request, trusted []*net.IPNet) string {
	peer := remoteHost(r)
	if !containsIP(trusted, net.ParseIP(peer)) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				return client
			}
			client = ip.String()
			if !containsIP(trusted, ip) {
				return client
			}
		}
		return client
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

func parseCIDRs(cidrs []string, logger *slog.Logger, msg string) []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn(msg,
				slog.String("cidr", cidr),
				slog.String("error", err.Error()),
			)
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
