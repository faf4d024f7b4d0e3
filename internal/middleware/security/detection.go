package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"
)

// DetectionMetrics counts what the detector has seen.
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags probing requests and decides which peers may set
// forwarding and identity headers.
type Detector struct {
	trusted    []netip.Prefix
	suspicious atomic.Int64
	invalidIPs atomic.Int64
}

type rule struct {
	reason string
	match  func(r *http.Request) bool
}

var probeMarkers = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}

var rules = []rule{
	{"probe marker in URL", func(r *http.Request) bool {
		query, err := url.QueryUnescape(r.URL.RawQuery)
		if err != nil {
			query = r.URL.RawQuery
		}
		return containsAny(strings.ToLower(r.URL.Path+"?"+query), probeMarkers)
	}},
	{"scanner user agent", func(r *http.Request) bool {
		return containsAny(strings.ToLower(r.UserAgent()), scannerAgents)
	}},
	{"debug method", func(r *http.Request) bool {
		switch r.Method {
		case "TRACE", "TRACK", "DEBUG", "CONNECT":
			return true
		}
		return false
	}},
	{"oversized URL", func(r *http.Request) bool { return len(r.URL.String()) > 2048 }},
	{"long forwarding chain", func(r *http.Request) bool {
		return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
	}},
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// NewDetector trusts the given proxies, each an IP address or CIDR block.
func NewDetector(trusted []string) (*Detector, error) {
	d := &Detector{}
	for _, p := range trusted {
		if err := d.AddTrustedProxy(p); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// AddTrustedProxy adds an IP (as a single-host prefix) or a CIDR block.
func (d *Detector) AddTrustedProxy(proxy string) error {
	proxy = strings.TrimSpace(proxy)
	if addr, err := netip.ParseAddr(proxy); err == nil {
		addr = addr.Unmap()
		d.trusted = append(d.trusted, netip.PrefixFrom(addr, addr.BitLen()))
		return nil
	}
	prefix, err := netip.ParsePrefix(proxy)
	if err != nil {
		return fmt.Errorf("invalid trusted proxy %s: %w", proxy, err)
	}
	d.trusted = append(d.trusted, prefix.Masked())
	return nil
}

// Inspect returns the first rule r trips, if any.
func (d *Detector) Inspect(r *http.Request) (reason string, suspicious bool) {
	for _, rl := range rules {
		if rl.match(r) {
			d.suspicious.Add(1)
			return rl.reason, true
		}
	}
	return "", false
}

// ExtractClientIP returns the caller's address. Forwarding headers are
// honoured only from trusted proxies; X-Forwarded-For is walked from the
// right, skipping trusted hops.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	direct := remoteHost(r)
	addr, err := netip.ParseAddr(direct)
	if err != nil {
		d.invalidIPs.Add(1)
		return direct
	}
	if !d.isTrusted(addr) {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				d.invalidIPs.Add(1)
				break
			}
			if !d.isTrusted(hop) || i == 0 {
				return hop.String()
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if hop, err := netip.ParseAddr(xri); err == nil {
			return hop.String()
		}
		d.invalidIPs.Add(1)
	}
	return direct
}

// FromTrustedProxy reports whether the direct peer is a trusted proxy.
func (d *Detector) FromTrustedProxy(r *http.Request) bool {
	addr, err := netip.ParseAddr(remoteHost(r))
	return err == nil && d.isTrusted(addr)
}

func (d *Detector) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range d.trusted {
		if p.Contains(addr) {
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

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIPs.Load(),
	}
}
