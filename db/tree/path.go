package tree

import "strings"

// RootPath is the canonical path of the namespace root.
const RootPath = "/"

// KeyPrefix is the tree namespace inside the key-value store. Keys are
// the canonical paths themselves, so the store's lexicographic iteration
// order is path lexicographic order — which is what makes Children
// listings deterministic.
const KeyPrefix = "tree/"

// CanonicalPath validates and normalizes a path. A canonical path is "/"
// or "/seg/seg..." where every segment is non-empty, contains no slash,
// and is neither "." nor "..". Comparison is case-sensitive throughout.
func CanonicalPath(path string) (string, error) {
	if path == "" {
		return "", &ErrInvalidPath{Path: path, Reason: "empty path"}
	}
	if !strings.HasPrefix(path, "/") {
		return "", &ErrInvalidPath{Path: path, Reason: "path must be absolute"}
	}
	if path == RootPath {
		return RootPath, nil
	}
	if strings.HasSuffix(path, "/") {
		return "", &ErrInvalidPath{Path: path, Reason: "trailing slash"}
	}
	for _, seg := range strings.Split(path[1:], "/") {
		switch {
		case seg == "":
			return "", &ErrInvalidPath{Path: path, Reason: "empty segment"}
		case seg == "." || seg == "..":
			return "", &ErrInvalidPath{Path: path, Reason: "relative segment"}
		}
	}
	return path, nil
}

// ParentPath returns the canonical parent of a non-root path, and ""
// for the root itself.
func ParentPath(path string) string {
	if path == RootPath {
		return ""
	}
	idx := strings.LastIndexByte(path, '/')
	if idx == 0 {
		return RootPath
	}
	return path[:idx]
}

// BaseName returns the final segment of a path.
func BaseName(path string) string {
	if path == RootPath {
		return ""
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

// JoinPath places name under parent.
func JoinPath(parent, name string) string {
	if parent == RootPath {
		return "/" + name
	}
	return parent + "/" + name
}

// childPrefix is the cursor prefix covering everything below path.
func childPrefix(path string) string {
	if path == RootPath {
		return KeyPrefix + "/"
	}
	return KeyPrefix + path + "/"
}

func nodeKey(path string) string {
	return KeyPrefix + path
}
