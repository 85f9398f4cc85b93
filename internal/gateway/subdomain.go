package gateway

import (
	"net/url"
	"strings"
)

// SubdomainFromHost extracts the leading label of a host name, e.g.
// "incus" from "incus.nginx.lan". The port, if present, is ignored.
func SubdomainFromHost(host string) string {
	host = stripPort(host)
	if idx := strings.Index(host, "."); idx >= 0 {
		return host[:idx]
	}
	return host
}

// SubdomainFromURL extracts the subdomain from a fully qualified URL.
// Non-absolute inputs yield the empty string.
func SubdomainFromURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return SubdomainFromHost(u.Host)
}

// SubdomainURL builds the fully qualified URL for a path on a subdomain
// of the configured domain.
func SubdomainURL(domain, subdomain, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://" + subdomain + "." + domain + path
}
