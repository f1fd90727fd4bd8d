// ABOUTME: Reference server address parsing
// ABOUTME: Resolves scheme, host and port (default 5579) from a target URL
package clocksync

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is used when the target does not name a port
const DefaultPort = 5579

// Endpoint is the parsed location of a reference time server
type Endpoint struct {
	Scheme string // "http", "https", "ws" or "wss"
	Host   string
	Port   int
}

// ParseEndpoint parses a target such as "http://timehost:8080",
// "ws://timehost" or a bare "timehost:8080". A bare target is treated as http
func ParseEndpoint(target string) (Endpoint, error) {
	raw := strings.TrimSpace(target)
	if raw == "" {
		return Endpoint{}, &ConfigurationError{Field: "target", Reason: "empty target URL"}
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, &ConfigurationError{Field: "target", Reason: err.Error()}
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https", "ws", "wss":
	default:
		return Endpoint{}, &ConfigurationError{Field: "target", Reason: "unsupported scheme " + strconv.Quote(u.Scheme)}
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, &ConfigurationError{Field: "target", Reason: "missing host in " + strconv.Quote(target)}
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, &ConfigurationError{Field: "target", Reason: "invalid port " + strconv.Quote(p)}
		}
	}

	return Endpoint{Scheme: scheme, Host: host, Port: port}, nil
}

// Addr returns host:port
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns the request URL. The exchange always targets path "/"
func (e Endpoint) URL() string {
	u := url.URL{Scheme: e.Scheme, Host: e.Addr(), Path: "/"}
	return u.String()
}

// WebSocket reports whether the endpoint uses the WebSocket transport
func (e Endpoint) WebSocket() bool {
	return e.Scheme == "ws" || e.Scheme == "wss"
}

func (e Endpoint) String() string {
	return e.URL()
}
