package resolver

import (
	"strings"

	"tagscan/tagerr"
)

// pathSegment is one dot-separated component of a user-entered path,
// with any "[i]" index suffix carried separately so matching ignores
// it but the canonical output keeps it verbatim.
type pathSegment struct {
	name  string
	index string // includes brackets, e.g. "[3]" or "[1][2]"
}

// ResolvePath matches a user-entered path against the stored tree,
// case-insensitively, and returns the canonical casing plus the
// matched node. Array index suffixes are preserved verbatim. A miss at
// any segment returns a NotFoundError carrying the full input path.
func ResolvePath(roots []*TagNode, path string) (string, *TagNode, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "", nil, &tagerr.NotFoundError{Path: path}
	}

	node, consumed := matchRoot(roots, segments)
	if node == nil {
		return "", nil, &tagerr.NotFoundError{Path: path}
	}

	canonical := canonicalRootName(node.Name, segments[:consumed])

	for _, seg := range segments[consumed:] {
		child := matchMember(node.Members, seg.name)
		if child == nil {
			return "", nil, &tagerr.NotFoundError{Path: path}
		}
		node = child
		canonical += "." + node.Name + seg.index
	}

	return canonical, node, nil
}

// matchRoot finds the root whose name covers the leading segments.
// Program-scoped roots carry a dot ("Program:Main.Motor"), so a root
// may consume more than one input segment.
func matchRoot(roots []*TagNode, segments []pathSegment) (*TagNode, int) {
	var found *TagNode
	consumed := 0
	exact := false

	for _, root := range roots {
		n := strings.Count(root.Name, ".") + 1
		if n > len(segments) {
			continue
		}

		joined := joinNames(segments[:n])
		if !strings.EqualFold(joined, root.Name) {
			continue
		}

		// Exact-case match wins over the first fold match.
		if joined == root.Name {
			return root, n
		}
		if !exact && found == nil {
			found = root
			consumed = n
		}
	}

	return found, consumed
}

// matchMember finds a child by name, preferring exact case.
func matchMember(members []*TagNode, name string) *TagNode {
	var folded *TagNode
	for _, m := range members {
		if m.Name == name {
			return m
		}
		if folded == nil && strings.EqualFold(m.Name, name) {
			folded = m
		}
	}
	return folded
}

// canonicalRootName rebuilds the canonical leading path: the stored
// root name with the input's index suffix on the final consumed
// segment.
func canonicalRootName(rootName string, consumed []pathSegment) string {
	if len(consumed) == 0 {
		return rootName
	}
	return rootName + consumed[len(consumed)-1].index
}

func joinNames(segments []pathSegment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.name
	}
	return strings.Join(parts, ".")
}

// splitPath splits on '.' outside brackets and separates index
// suffixes. The colon is not a separator, so "Program:Main" stays one
// segment.
func splitPath(path string) []pathSegment {
	var segments []pathSegment
	var current strings.Builder
	depth := 0

	flush := func() {
		raw := current.String()
		current.Reset()
		if raw == "" {
			return
		}
		name := raw
		index := ""
		if i := strings.IndexByte(raw, '['); i >= 0 {
			name = raw[:i]
			index = raw[i:]
		}
		segments = append(segments, pathSegment{name: name, index: index})
	}

	for i := 0; i < len(path); i++ {
		ch := path[i]
		switch ch {
		case '[':
			depth++
			current.WriteByte(ch)
		case ']':
			if depth > 0 {
				depth--
			}
			current.WriteByte(ch)
		case '.':
			if depth > 0 {
				current.WriteByte(ch)
			} else {
				flush()
			}
		default:
			current.WriteByte(ch)
		}
	}
	flush()

	return segments
}
