package parser

import "net/url"

// resolveCardURL resolves a job card's (possibly relative) href
// against the page's final URL, matching the base+host resolution
// rule used throughout fetching.
func resolveCardURL(baseURL, href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
