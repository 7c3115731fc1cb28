package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalizer turns URLs into comparison keys.
//
// A key is the lower-cased scheme and host (default port removed) followed by
// the escaped path with one trailing slash removed. Fragments are always
// dropped. Query strings are dropped unless KeepQuery is set, so
// "/list?page=2" and "/list?page=3" count as one page by default.
//
// Keys are only compared, never navigated to.
type Normalizer struct {
	// KeepQuery appends the raw query string to the key.
	KeepQuery bool
}

// Normalize returns the comparison key for raw.
// A string that does not parse as an absolute URL is returned unchanged, so
// one malformed link never stops a traversal.
func (n Normalizer) Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	key := scheme + "://" + canonicalHost(scheme, u) + strings.TrimSuffix(u.EscapedPath(), "/")

	if n.KeepQuery && u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// Normalize normalizes raw with the default Normalizer.
func Normalize(raw string) string {
	return Normalizer{}.Normalize(raw)
}

// defaultPorts maps schemes to the port a URL may omit.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// canonicalHost lower-cases the host and drops the scheme's default port.
func canonicalHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" || defaultPorts[scheme] == port {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}

// ScopePrefixFor returns the default scope prefix of a seed: its normalized
// origin. An unparsable seed is its own prefix.
func ScopePrefixFor(seed string) string {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return seed
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme + "://" + canonicalHost(scheme, u)
}

// NormalizeSeed validates an operator-supplied seed URL.
// A bare host such as "example.com/docs" gets an https scheme.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidSeed
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidSeed)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// NormalizeScope completes and validates an operator-supplied scope prefix
// the way NormalizeSeed treats seeds: a bare "shop.test/catalog" becomes
// "https://shop.test/catalog". The result is the normalized prefix.
func NormalizeScope(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidScope)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidScope, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidScope)
	}
	return Normalize(raw), nil
}
