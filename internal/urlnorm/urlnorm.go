// Package urlnorm canonicalizes and filters URLs collected during link
// discovery. Every URL stored in a discovery set passes through Normalize
// and Accept first, so set membership is defined on the canonical form.
package urlnorm

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// junkTokens are href values that look like links to naive extractors but
// are not URLs at all. They are rejected before any parsing.
var junkTokens = map[string]bool{
	"internal":  true,
	"external":  true,
	"none":      true,
	"null":      true,
	"undefined": true,
}

var (
	binaryPathRe = regexp.MustCompile(`\.(pdf|jpg|jpeg|png|gif|svg|ico|css|js|woff2?|ttf|mp4|zip)$`)

	blockedPathParts = []string{"/wp-admin/", "/admin/", "/login", "/logout", "/cart", "/checkout"}
)

// MaxURLLength is the longest URL Accept will pass.
const MaxURLLength = 200

// Normalize resolves raw against base (which may be nil for absolute URLs)
// and returns the canonical form: lowercase host, default ports and
// fragments and query dropped, no trailing slash. Non-URL junk tokens and
// non-HTTP schemes return an error. Normalize is idempotent.
func Normalize(raw string, base *url.URL) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "#" || trimmed == "/" {
		return "", eris.New("urlnorm: not a url")
	}
	if junkTokens[strings.ToLower(trimmed)] {
		return "", eris.New("urlnorm: junk token")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", eris.Wrap(err, "urlnorm: parse")
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.New("urlnorm: scheme not http(s)")
	}
	if u.Hostname() == "" {
		return "", eris.New("urlnorm: missing host")
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host += ":" + port
	}
	u.Host = host

	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.User = nil

	// Canonical form carries no trailing slash, including on the root.
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	return u.String(), nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// Accept reports whether a URL belongs in a discovery set for the given
// origin host. It rejects non-HTTP schemes, cross-origin hosts, binary and
// admin/auth paths, and over-long URLs.
func Accept(rawURL, originHost string) bool {
	if len(rawURL) > MaxURLLength {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !SameOrigin(u.Hostname(), originHost) {
		return false
	}

	path := strings.ToLower(u.Path)
	if binaryPathRe.MatchString(path) {
		return false
	}
	// Normalized paths carry no trailing slash; restore one so patterns
	// like /wp-admin/ match a bare /wp-admin too.
	for _, part := range blockedPathParts {
		if strings.Contains(path+"/", part) {
			return false
		}
	}
	return true
}

// RegistrableHost lowercases a host and strips a leading www label.
func RegistrableHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// SameOrigin reports whether two hosts share a registrable domain,
// case-insensitively and ignoring a www prefix. Subdomains count as the
// same origin: blog.example.com and example.com match.
func SameOrigin(host, originHost string) bool {
	h := RegistrableHost(host)
	o := RegistrableHost(originHost)
	if h == "" || o == "" {
		return false
	}
	if h == o {
		return true
	}
	return strings.HasSuffix(h, "."+o) || strings.HasSuffix(o, "."+h)
}
