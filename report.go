package tagtree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Status classifies a document report.
type Status int

const (
	StatusValid             Status = iota // Every tagged node passed.
	StatusValidWithWarnings               // Reserved; not produced yet.
	StatusInvalid                         // At least one problem was recorded.
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusValidWithWarnings:
		return "valid_with_warnings"
	default:
		return "invalid"
	}
}

// Problem is one per-node failure in a document.
type Problem struct {
	Path    Path   // Absolute path of the offending location.
	Node    Path   // Absolute path of the tagged node being processed.
	Tag     string // Wire tag of that node, when known.
	Code    string
	Message string
	Err     error
}

func (p Problem) String() string {
	if p.Tag != "" {
		return fmt.Sprintf("%s [%s] %s: %s", p.Path.Pointer(), p.Tag, p.Code, p.Message)
	}
	return fmt.Sprintf("%s %s: %s", p.Path.Pointer(), p.Code, p.Message)
}

// key identifies a problem for de-duplication.
func (p Problem) key() string {
	return p.Path.Pointer() + "\x00" + p.Code + "\x00" + p.Message
}

// Report aggregates the problems of one document-level call.
type Report struct {
	Status   Status
	Problems []Problem
}

// Valid reports whether no problem was recorded.
func (r *Report) Valid() bool { return r == nil || len(r.Problems) == 0 }

// Err returns nil for a valid report and a *ReportError otherwise.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &ReportError{Problems: r.Problems}
}

// Merge returns a report holding the problems of r and o. A problem with
// the same path, code and message as one already present is dropped.
func (r *Report) Merge(o *Report) *Report {
	out := &Report{Status: StatusValid}
	seen := map[string]bool{}
	for _, src := range []*Report{r, o} {
		if src == nil {
			continue
		}
		for _, p := range src.Problems {
			k := p.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out.Problems = append(out.Problems, p)
		}
	}
	sortProblems(out.Problems)
	if len(out.Problems) > 0 {
		out.Status = StatusInvalid
	}
	return out
}

// ReportError is the error form of an invalid report. errors.Is matches the
// sentinel of any contained problem.
type ReportError struct {
	Problems []Problem
}

func (e *ReportError) Error() string {
	const maxShown = 3
	var b strings.Builder
	for i, p := range e.Problems {
		if i == maxShown {
			fmt.Fprintf(&b, "; ... (total %d)", len(e.Problems))
			break
		}
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.String())
	}
	return b.String()
}

// Unwrap exposes every problem's error to errors.Is and errors.As.
func (e *ReportError) Unwrap() []error {
	out := make([]error, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Err != nil {
			out = append(out, p.Err)
		}
	}
	return out
}

// collector gathers problems from concurrent node conversions.
type collector struct {
	mu       sync.Mutex
	problems []Problem
	seen     map[string]bool
	failFast bool
}

// reportedError marks an error whose problems are already in the collector,
// so enclosing nodes do not report it again.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func isReported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

// add records err for the tagged node at node and returns it marked as
// reported. Violations and malformed-node paths are made absolute.
func (c *collector) add(node Path, tag string, err error) error {
	if err == nil || isReported(err) {
		return err
	}
	var ps []Problem
	code := CodeOf(err)
	var ve *ValidationError
	var me *MalformedNodeError
	var se *UnknownShapeError
	switch {
	case errors.As(err, &ve):
		for _, v := range ve.Violations {
			ps = append(ps, Problem{Path: node.Join(v.Path), Node: node, Tag: tag, Code: code, Message: v.Message, Err: err})
		}
	case errors.As(err, &me):
		ps = append(ps, Problem{Path: node.Join(me.Path), Node: node, Tag: tag, Code: code, Message: me.Reason, Err: err})
	case errors.As(err, &se):
		ps = append(ps, Problem{Path: node.Join(se.Path), Node: node, Tag: tag, Code: code, Message: fmt.Sprintf("unknown shape kind %q", se.Kind), Err: err})
	}
	if len(ps) == 0 {
		ps = []Problem{{Path: node, Node: node, Tag: tag, Code: code, Message: err.Error(), Err: err}}
	}
	c.mu.Lock()
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	for _, p := range ps {
		// A nested node can fail both on its own and while its parent is prepared.
		if k := p.key(); !c.seen[k] {
			c.seen[k] = true
			c.problems = append(c.problems, p)
		}
	}
	c.mu.Unlock()
	return &reportedError{err: err}
}

// stopped reports whether fail-fast processing should end.
func (c *collector) stopped() bool {
	if !c.failFast {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.problems) > 0
}

func (c *collector) report() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps := append([]Problem(nil), c.problems...)
	sortProblems(ps)
	r := &Report{Status: StatusValid, Problems: ps}
	if len(ps) > 0 {
		r.Status = StatusInvalid
	}
	return r
}

// sortProblems gives a stable order independent of goroutine scheduling.
func sortProblems(ps []Problem) {
	sort.SliceStable(ps, func(i, j int) bool { return problemLess(ps[i], ps[j]) })
}

func problemLess(a, b Problem) bool {
	if c := comparePaths(a.Path, b.Path); c != 0 {
		return c < 0
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.Message < b.Message
}
