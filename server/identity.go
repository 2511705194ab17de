package server

import (
	"net"
	"net/http"
	"strings"
)

// DeviceIDHeader carries the client-supplied device token when the app
// provides one.
const DeviceIDHeader = "X-Device-Id"

// CallerIdentity derives the best-effort identity token a vote is deduped
// on. Preference order: device token, first forwarded-for hop, direct peer
// address. Shared NATs collapse to one identity; that is an accepted
// approximation, not an authentication mechanism.
func CallerIdentity(r *http.Request) string {
	if device := strings.TrimSpace(r.Header.Get(DeviceIDHeader)); device != "" {
		return device
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
