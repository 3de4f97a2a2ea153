package routing

import "strings"

// JoinPath joins path segments into a chi pattern: a single leading slash,
// no trailing slash, and ":name" segments rewritten to "{name}".
//
//	JoinPath("api", "/cats/", ":id") == "/api/cats/{id}"
func JoinPath(parts ...string) string {
	var segs []string
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			if s == "" {
				continue
			}
			if strings.HasPrefix(s, ":") && len(s) > 1 {
				s = "{" + s[1:] + "}"
			}
			segs = append(segs, s)
		}
	}
	return "/" + strings.Join(segs, "/")
}
