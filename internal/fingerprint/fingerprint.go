// Package fingerprint derives the client signature a session is bound to.
package fingerprint

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/mssola/useragent"
)

// MaxUserAgentBytes bounds the stored user agent.  Longer headers are cut
// on a rune boundary, identically at login and on every later request.
const MaxUserAgentBytes = 1024

// Fingerprint describes the client behind a request.  Raw is what sessions
// store and compare; Browser and OS are informational.
type Fingerprint struct {
	Browser string
	OS      string
	IP      string
	Raw     string
}

// FromRequest derives the fingerprint of r.  realIP is the client address as
// resolved by the HTTP framework (proxy headers considered); when empty the
// connection's remote address is used.
func FromRequest(r *http.Request, realIP string) Fingerprint {
	raw := truncate(strings.TrimSpace(r.UserAgent()), MaxUserAgentBytes)
	fp := Fingerprint{Raw: raw, IP: realIP}
	if fp.IP == "" {
		fp.IP = remoteHost(r.RemoteAddr)
	}
	if raw == "" {
		return fp
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	fp.Browser = strings.TrimSpace(name + " " + version)
	fp.OS = ua.OS()
	return fp
}

// Matches reports whether the fingerprint belongs to the client that
// recorded stored at login.
func (f Fingerprint) Matches(stored string) bool {
	return f.Raw == stored
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
