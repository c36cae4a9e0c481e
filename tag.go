package tagtree

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a semantic version without prerelease or build metadata.
type Version struct {
	Major, Minor, Patch int
}

// V is shorthand for Version{major, minor, patch}.
func V(major, minor, patch int) Version { return Version{major, minor, patch} }

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("tagtree: version %q: want major.minor.patch", s)
	}
	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || p == "" || (len(p) > 1 && p[0] == '0') {
			return Version{}, fmt.Errorf("tagtree: version %q: bad component %q", s, p)
		}
		out[i] = n
	}
	return Version{out[0], out[1], out[2]}, nil
}

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// Less reports v < o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// VersionRange is the half-open interval [Min, Max).
type VersionRange struct {
	Min, Max Version
}

// Major returns the range covering every 'major.x.y' version.
func Major(major int) VersionRange {
	return VersionRange{Min: V(major, 0, 0), Max: V(major+1, 0, 0)}
}

// Contains reports whether v lies in r.
func (r VersionRange) Contains(v Version) bool {
	return !v.Less(r.Min) && v.Less(r.Max)
}

// Overlaps reports whether r and o share any version.
func (r VersionRange) Overlaps(o VersionRange) bool {
	return r.Min.Less(o.Max) && o.Min.Less(r.Max)
}

// Empty reports whether r contains no version.
func (r VersionRange) Empty() bool { return !r.Min.Less(r.Max) }

func (r VersionRange) String() string {
	return "[" + r.Min.String() + ", " + r.Max.String() + ")"
}

// Name identifies a tag family independently of its version.
type Name struct {
	Namespace string
	Name      string
}

func (n Name) String() string { return n.Namespace + ":" + n.Name }

// At returns the tag of this family at version v.
func (n Name) At(v Version) Tag { return Tag{Name: n, Version: v} }

// Tag identifies the converter and schema governing a tree node. Its wire
// form is "namespace:name-major.minor.patch".
type Tag struct {
	Name
	Version Version
}

func (t Tag) String() string { return t.Name.String() + "-" + t.Version.String() }

// ParseTag parses the wire form of a tag. The namespace ends at the last ':'
// and the version starts after the last '-'. A malformed tag is reported as an
// *UnknownTagError.
func ParseTag(s string) (Tag, error) {
	colon := strings.LastIndexByte(s, ':')
	if colon <= 0 || colon == len(s)-1 {
		return Tag{}, &UnknownTagError{Tag: s, Reason: "missing namespace"}
	}
	ns, rest := s[:colon], s[colon+1:]
	dash := strings.LastIndexByte(rest, '-')
	if dash <= 0 || dash == len(rest)-1 {
		return Tag{}, &UnknownTagError{Tag: s, Reason: "missing version"}
	}
	v, err := ParseVersion(rest[dash+1:])
	if err != nil {
		return Tag{}, &UnknownTagError{Tag: s, Reason: err.Error()}
	}
	return Tag{Name: Name{Namespace: ns, Name: rest[:dash]}, Version: v}, nil
}

// MustParseTag is ParseTag for static tags; it panics on error.
func MustParseTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// MatchTag matches a tag string against a pattern. A trailing '*' matches any
// suffix; otherwise the match is exact.
func MatchTag(pattern, tag string) bool {
	if p, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(tag, p)
	}
	return pattern == tag
}
