package middleware

import (
	"net"
	"net/http"
)

// WithLoopbackOnly отклоняет запросы не с loopback‑адресов.
// Доступ только с локальной машины — единственная защита первой ассоциации.
func WithLoopbackOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsLoopback(r) {
			sugar.Warnw("Rejected non-loopback request", "remote", r.RemoteAddr)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// IsLoopback сообщает, пришёл ли запрос с loopback‑адреса.
func IsLoopback(r *http.Request) bool {
	ip := net.ParseIP(RemoteHost(r))
	return ip != nil && ip.IsLoopback()
}

// RemoteHost возвращает адрес клиента без порта.
// X-Forwarded-For не учитывается: сервис слушает только локальный интерфейс.
func RemoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
