package obs

import "strings"

// CanonicalPath collapses resource identifiers embedded in URL paths so
// metric label cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "tokens":
		return "/v1/tokens/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "tokens" && parts[3] == "accept":
		return "/v1/tokens/:id/accept"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "batch-members":
		return "/v1/batch-members/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "batch-members" && parts[3] == "claim":
		return "/v1/batch-members/:id/claim"
	}
	return path
}
