package tenant

import (
	"net"
	"net/http"
	"strings"
)

// SubdomainFromRequest extracts the tenant subdomain from the request Host
// when it is a direct child of the root domain. Returns "" for the apex,
// unrelated hosts, and bare IPs.
func SubdomainFromRequest(req *http.Request) string {
	host := strings.ToLower(strings.TrimSpace(req.Host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}

	suffix := "." + RootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}
