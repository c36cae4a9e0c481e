package tagtree

import (
	"strconv"
	"strings"
)

// Path addresses a node from a tree root. Elements are string keys or int
// sequence indices.
type Path []any

// Key returns a copy of p extended with a mapping key.
func (p Path) Key(name string) Path {
	return append(append(Path(nil), p...), name)
}

// Index returns a copy of p extended with a sequence index.
func (p Path) Index(i int) Path {
	return append(append(Path(nil), p...), i)
}

// Join returns a copy of p followed by q.
func (p Path) Join(q Path) Path {
	return append(append(Path(nil), p...), q...)
}

// Pointer renders p as an RFC 6901 JSON Pointer ("/" for the root).
func (p Path) Pointer() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, e := range p {
		b.WriteByte('/')
		switch t := e.(type) {
		case int:
			b.WriteString(strconv.Itoa(t))
		case string:
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(t, "~", "~0"), "/", "~1"))
		}
	}
	return b.String()
}

func (p Path) String() string { return p.Pointer() }

// Equal reports element-wise equality.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// ParsePointer splits a JSON Pointer into unescaped string segments.
func ParsePointer(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, s := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
	}
	return parts
}

// comparePaths orders paths element-wise; ints sort before strings.
func comparePaths(a, b Path) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ai, aInt := a[i].(int)
		bi, bInt := b[i].(int)
		switch {
		case aInt && bInt:
			if c := cmpInt(ai, bi); c != 0 {
				return c
			}
		case aInt:
			return -1
		case bInt:
			return 1
		default:
			if c := strings.Compare(a[i].(string), b[i].(string)); c != 0 {
				return c
			}
		}
	}
	return cmpInt(len(a), len(b))
}
