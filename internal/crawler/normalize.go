package crawler

import (
	"net/url"
	"strings"
)

// skipExtensions are path suffixes of known non-content resources.
// Links ending in these are never enqueued: documents, archives, images,
// styles, scripts, and markup/data files.
var skipExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".tar", ".gz", ".jpg", ".jpeg", ".png", ".gif",
	".svg", ".ico", ".css", ".js", ".xml", ".txt", ".csv",
}

// NormalizeURL canonicalizes a URL for visited-set membership.
//
// Rules: lowercase scheme and host, strip the scheme's default port,
// collapse a root path to empty and strip trailing slashes from longer
// paths, drop the fragment, keep the query unchanged. Two URLs that
// normalize identically are the same page.
//
// Unparseable URLs are returned unchanged; they will simply never match
// another entry.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Default ports add nothing: http://x:80/ and http://x/ are the
	// same origin.
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	// "/" and "" are the same page at the root; elsewhere trailing
	// slashes are dropped entirely so the form is stable under repeated
	// normalization.
	if u.Path == "/" {
		u.Path = ""
	} else if strings.HasSuffix(u.Path, "/") && len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	u.Fragment = ""

	return u.String()
}

// isInternalLink reports whether link is an internal, crawlable target of
// the site rooted at base.
//
// The link must be http(s), its host must exactly match the seed's host,
// its path must not end in a known non-content extension, and it must not
// carry a fragment (fragment-only differences are duplicates of the
// fragment-less page).
func isInternalLink(base *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if !strings.EqualFold(u.Host, base.Host) {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	if u.Fragment != "" {
		return false
	}

	return true
}
