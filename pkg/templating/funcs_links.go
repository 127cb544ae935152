package templating

import "strings"

// link joins a relative root prefix and a root-relative path.
func link(relRoot, path string) string {
	return relRoot + strings.TrimPrefix(path, "/")
}
