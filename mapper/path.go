package mapper

// Path is an ordered sequence of steps locating a value inside the output
// tree being built. A string step selects a map key, an int step a slice
// index. Paths are used both while descending into nested form data and to
// remember where deferred references must later be spliced in.
type Path []any

// With returns a new Path with step appended. The receiver is copied so
// registered paths never alias the mapper's working path during recursion.
func (p Path) With(step any) Path {
	np := make(Path, len(p)+1)
	copy(np, p)
	np[len(p)] = step
	return np
}

// SetAt writes value into root at the given path and returns the (possibly
// replaced) root. Intermediate containers are created as needed: a map for a
// string step, a slice for an int step; slices grow with nil padding up to
// the addressed index. An empty path replaces root entirely.
func SetAt(root any, path Path, value any) any {
	if len(path) == 0 {
		return value
	}
	switch step := path[0].(type) {
	case string:
		m, ok := root.(map[string]any)
		if !ok {
			m = make(map[string]any)
		}
		m[step] = SetAt(m[step], path[1:], value)
		return m
	case int:
		s, ok := root.([]any)
		if !ok {
			s = nil
		}
		for len(s) <= step {
			s = append(s, nil)
		}
		s[step] = SetAt(s[step], path[1:], value)
		return s
	default:
		// Unknown step types cannot address anything; leave root untouched.
		return root
	}
}
