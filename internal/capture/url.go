package capture

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseSubmissionURL validates a submission URL: it must carry a scheme and
// a host.
func ParseSubmissionURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q must include scheme and host", rawURL)
	}
	return u, nil
}

// NormalizeURL standardizes a parsed URL so page dedup keys compare equal
// across jobs. It lowercases the scheme and host, removes default ports and
// fragments, and drops a trailing slash on the bare path. The input URL is
// not modified.
func NormalizeURL(u *url.URL) string {
	n := *u

	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)

	if n.Scheme == "http" {
		n.Host = strings.TrimSuffix(n.Host, ":80")
	}
	if n.Scheme == "https" {
		n.Host = strings.TrimSuffix(n.Host, ":443")
	}

	n.Fragment = ""
	if n.Path == "/" {
		n.Path = ""
	}

	return n.String()
}

// ExtractDomain returns the lowercased host of the URL with any leading
// "www." stripped.
func ExtractDomain(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// SiteName derives a display name from the URL's host: the first label
// after any "www.", upper-cased initial. "www.example.com" becomes
// "Example".
func SiteName(u *url.URL) string {
	name := ExtractDomain(u)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return u.Host
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// SameHost reports whether candidate shares the submission URL's host
// exactly. Malformed candidates never match.
func SameHost(submission *url.URL, candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, submission.Host)
}
