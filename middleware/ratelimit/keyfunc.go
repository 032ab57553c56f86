package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/fm-dev-mx/celebra-me-sub001/middleware/ratelimit/application"
)

type KeyFunc func(r *http.Request) string

// ClientIdentity extrai o IP do cliente.
//
// Ordem: primeiro IP válido do X-Forwarded-For, depois X-Real-IP (só quando
// trustForwarded, ou seja, atrás de um proxy confiável), depois o host de
// RemoteAddr. Sem nada válido devolve "unknown", que o Service trata como fail-open.
func ClientIdentity(trustForwarded bool) KeyFunc {
	return func(r *http.Request) string {
		if trustForwarded {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				for _, part := range strings.Split(xff, ",") {
					if ip, ok := parseIP(part); ok {
						return ip
					}
				}
			}
			if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
				return ip
			}
		}

		// fallback: RemoteAddr (conexão direta)
		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		if ip, ok := parseIP(addr); ok {
			return ip
		}
		return application.UnknownIdentity
	}
}

func parseIP(s string) (string, bool) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return ip.Unmap().String(), true
}
