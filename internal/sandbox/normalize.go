package sandbox

import "strings"

// NormalizeRepoURL canonicalizes a repository URL for cache keying: trim
// surrounding whitespace, lower-case, strip a trailing slash and ".git".
// This is an invariant of the analysis cache: two URLs that normalize equal
// MUST hit the same cache entry.
func NormalizeRepoURL(repoURL string) string {
	url := strings.ToLower(strings.TrimSpace(repoURL))
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")
	return url
}
