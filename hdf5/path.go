package hdf5

import (
	"path"
	"strings"
)

// SplitPath splits a path into its components. Leading, trailing and
// repeated slashes are ignored.
//
//   - "/" -> []string{}
//   - "/foo/bar" -> []string{"foo", "bar"}
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

// CleanPath normalizes a path so it starts with "/" and has no trailing
// slash.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// joinPath appends name to a group path.
func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
