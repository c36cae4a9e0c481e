package tagtree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes (stable; used for i18n and machine-readable reports).
const (
	CodeUnknownTag         = "unknown_tag"
	CodeUnsupportedVersion = "unsupported_version"
	CodeDuplicateBinding   = "duplicate_binding"
	CodeSchemaNotFound     = "schema_not_found"
	CodeSchemaCycle        = "schema_cycle"
	CodeValidation         = "validation"
	CodeMalformedNode      = "malformed_node"
	CodeMigrationFailed    = "migration_failed"
	CodeInternal           = "internal"
)

// Sentinels for errors.Is. Each typed error below matches its sentinel.
var (
	ErrUnknownTag         = errors.New("tagtree: unknown tag")
	ErrUnsupportedVersion = errors.New("tagtree: unsupported version")
	ErrDuplicateBinding   = errors.New("tagtree: duplicate binding")
	ErrSchemaNotFound     = errors.New("tagtree: schema not found")
	ErrSchemaCycle        = errors.New("tagtree: schema reference cycle")
	ErrValidation         = errors.New("tagtree: validation failed")
	ErrMalformedNode      = errors.New("tagtree: malformed node")
	ErrMigrationFailed    = errors.New("tagtree: migration failed")
)

// UnknownTagError reports a tag with no matching namespace+name binding, or a
// tag string that cannot be parsed.
type UnknownTagError struct {
	Tag    string
	Reason string
}

func (e *UnknownTagError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tagtree: unknown tag %q: %s", e.Tag, e.Reason)
	}
	return fmt.Sprintf("tagtree: unknown tag %q", e.Tag)
}

func (e *UnknownTagError) Is(target error) bool { return target == ErrUnknownTag }

// UnknownShapeError reports an unrecognized discriminator inside a
// discriminated converter. It is an unknown-tag class error scoped to the
// converter's own dispatch, not to the registry.
type UnknownShapeError struct {
	Path Path
	Kind string
	Want []string
}

func (e *UnknownShapeError) Error() string {
	return fmt.Sprintf("tagtree: unknown shape kind %q at %s (want one of %s)", e.Kind, e.Path.Pointer(), strings.Join(e.Want, ", "))
}

func (e *UnknownShapeError) Is(target error) bool { return target == ErrUnknownTag }

// UnsupportedVersionError reports a known tag family whose version is not
// covered by any binding, or a version the migrator refuses.
type UnsupportedVersionError struct {
	Tag       Tag
	Supported []VersionRange
	Current   Version
	Reason    string
}

func (e *UnsupportedVersionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tagtree: unsupported version %s of %s", e.Tag.Version, e.Tag.Name)
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if len(e.Supported) > 0 {
		rs := make([]string, len(e.Supported))
		for i, r := range e.Supported {
			rs[i] = r.String()
		}
		b.WriteString(" (supported " + strings.Join(rs, ", ") + ")")
	}
	return b.String()
}

func (e *UnsupportedVersionError) Is(target error) bool { return target == ErrUnsupportedVersion }

// DuplicateBindingError reports overlapping version ranges for one tag family.
type DuplicateBindingError struct {
	Name     Name
	Existing VersionRange
	Added    VersionRange
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("tagtree: binding %s %s overlaps existing %s", e.Name, e.Added, e.Existing)
}

func (e *DuplicateBindingError) Is(target error) bool { return target == ErrDuplicateBinding }

// SchemaNotFoundError reports a schema URI that no store or fetcher could
// provide. Err holds the last underlying failure, if any.
type SchemaNotFoundError struct {
	URI string
	Err error
}

func (e *SchemaNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tagtree: schema %q not found: %v", e.URI, e.Err)
	}
	return fmt.Sprintf("tagtree: schema %q not found", e.URI)
}

func (e *SchemaNotFoundError) Is(target error) bool { return target == ErrSchemaNotFound }
func (e *SchemaNotFoundError) Unwrap() error         { return e.Err }

// SchemaCycleError reports a cross-document $ref cycle. Chain lists the
// schema URIs from the first repeated URI back to itself.
type SchemaCycleError struct {
	Chain []string
}

func (e *SchemaCycleError) Error() string {
	return "tagtree: schema reference cycle: " + strings.Join(e.Chain, " -> ")
}

func (e *SchemaCycleError) Is(target error) bool { return target == ErrSchemaCycle }

// Violation is one schema conformance failure.
type Violation struct {
	Path    Path   // From the validated node's root.
	Keyword string // Schema keyword that failed, when known.
	Message string
}

func (v Violation) String() string {
	return v.Path.Pointer() + ": " + v.Message
}

// Violations is an ordered list of violations that implements error.
type Violations []Violation

// Error summarizes the first few violations.
func (vs Violations) Error() string {
	if len(vs) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := min(len(vs), maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", vs[i].Message, vs[i].Path.Pointer())
	}
	if len(vs) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(vs))
	}
	return b.String()
}

// Sort orders violations by path, then keyword, then message.
func (vs Violations) Sort() {
	sort.SliceStable(vs, func(i, j int) bool {
		if c := comparePaths(vs[i].Path, vs[j].Path); c != 0 {
			return c < 0
		}
		if vs[i].Keyword != vs[j].Keyword {
			return vs[i].Keyword < vs[j].Keyword
		}
		return vs[i].Message < vs[j].Message
	})
}

// ValidationError wraps the violations of one tagged node against its schema.
type ValidationError struct {
	Tag        Tag
	SchemaURI  string
	Violations Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tagtree: %s does not conform to %s: %s", e.Tag, e.SchemaURI, e.Violations.Error())
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// MalformedNodeError reports a schema-valid node that cannot be reconstructed
// into its domain object. Path is relative to the converted node.
type MalformedNodeError struct {
	Path   Path
	Reason string
}

func (e *MalformedNodeError) Error() string {
	return fmt.Sprintf("tagtree: malformed node at %s: %s", e.Path.Pointer(), e.Reason)
}

func (e *MalformedNodeError) Is(target error) bool { return target == ErrMalformedNode }

// Malformed is shorthand for a *MalformedNodeError with a formatted reason.
func Malformed(p Path, format string, args ...any) *MalformedNodeError {
	return &MalformedNodeError{Path: p, Reason: fmt.Sprintf(format, args...)}
}

// MigrationFailedError reports a missing or failing migration step.
type MigrationFailedError struct {
	Name     Name
	From, To Version
	Reason   string
	Err      error
}

func (e *MigrationFailedError) Error() string {
	msg := fmt.Sprintf("tagtree: cannot migrate %s from %s to %s", e.Name, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MigrationFailedError) Is(target error) bool { return target == ErrMigrationFailed }
func (e *MigrationFailedError) Unwrap() error         { return e.Err }

// CodeOf maps an error to its stable code.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrMalformedNode):
		return CodeMalformedNode
	case errors.Is(err, ErrMigrationFailed):
		return CodeMigrationFailed
	case errors.Is(err, ErrUnsupportedVersion):
		return CodeUnsupportedVersion
	case errors.Is(err, ErrUnknownTag):
		return CodeUnknownTag
	case errors.Is(err, ErrSchemaCycle):
		return CodeSchemaCycle
	case errors.Is(err, ErrSchemaNotFound):
		return CodeSchemaNotFound
	case errors.Is(err, ErrDuplicateBinding):
		return CodeDuplicateBinding
	default:
		return CodeInternal
	}
}

// AsViolations extracts the violations carried by err, if any.
func AsViolations(err error) (Violations, bool) {
	if err == nil {
		return nil, false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations, true
	}
	var vs Violations
	if errors.As(err, &vs) {
		return vs, true
	}
	return nil, false
}
