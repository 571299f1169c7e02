package revision

import (
	"regexp"
	"strconv"
	"strings"
)

// Ident is a parsed revision identifier. The set of implementations is
// closed: [Exact], [Tuple], [Head], [Heads], [Base], [Qualified] and
// [Relative].
type Ident interface {
	String() string
	ident()
}

// Exact names a revision id, a unique id prefix, or a branch label.
type Exact struct{ ID string }

// Tuple names several identifiers at once, as read from a version store.
type Tuple struct{ IDs []string }

// Head is the single head, optionally of a branch when wrapped in [Qualified].
type Head struct{}

// Heads is every head.
type Heads struct{}

// Base is the empty state below every base revision.
type Base struct{}

// Qualified restricts an identifier to a branch: "label@head", "label@base",
// "label@heads" or "label@<id>".
type Qualified struct {
	Branch string
	Inner  Ident
}

// Relative is an offset from a symbol: "+2", "head-1", "ae10+3",
// "billing@head-2" or "billing@+1". It is only meaningful as a walk bound.
type Relative struct {
	Branch string
	Symbol string
	Offset int
}

func (Exact) ident()     {}
func (Tuple) ident()     {}
func (Head) ident()      {}
func (Heads) ident()     {}
func (Base) ident()      {}
func (Qualified) ident() {}
func (Relative) ident()  {}

func (e Exact) String() string { return e.ID }
func (t Tuple) String() string { return strings.Join(t.IDs, ", ") }
func (Head) String() string    { return "head" }
func (Heads) String() string   { return "heads" }
func (Base) String() string    { return "base" }

func (q Qualified) String() string { return q.Branch + "@" + q.Inner.String() }

func (r Relative) String() string {
	var b strings.Builder
	if r.Branch != "" {
		b.WriteString(r.Branch)
		b.WriteByte('@')
	}
	b.WriteString(r.Symbol)
	if r.Offset >= 0 {
		b.WriteByte('+')
	}
	b.WriteString(strconv.Itoa(r.Offset))
	return b.String()
}

var relativeRe = regexp.MustCompile(`^(?:(.+?)@)?(\w+)?([+-]\d+)$`)

// ParseIdent parses a textual identifier. The empty string is [Base].
func ParseIdent(s string) Ident {
	if m := relativeRe.FindStringSubmatch(s); m != nil {
		if off, err := strconv.Atoi(m[3]); err == nil {
			return Relative{Branch: m[1], Symbol: m[2], Offset: off}
		}
	}
	if branch, rest, ok := strings.Cut(s, "@"); ok && branch != "" {
		return Qualified{Branch: branch, Inner: parseSymbol(rest)}
	} else if ok {
		return parseSymbol(rest)
	}
	return parseSymbol(s)
}

func parseSymbol(s string) Ident {
	switch s {
	case "", "base":
		return Base{}
	case "head":
		return Head{}
	case "heads":
		return Heads{}
	}
	return Exact{ID: s}
}

// ToIdent converts a loosely typed identifier into an [Ident]. It accepts
// nil, string, []string and Ident values. Anything else, notably []byte
// read from a misconfigured database driver, is an [IdentifierTypeError].
func ToIdent(v any) (Ident, error) {
	switch t := v.(type) {
	case nil:
		return Base{}, nil
	case Ident:
		return t, nil
	case string:
		return ParseIdent(t), nil
	case []string:
		return identOf(t), nil
	case []any:
		ids := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, &IdentifierTypeError{Value: e}
			}
			ids = append(ids, s)
		}
		return identOf(ids), nil
	}
	return nil, &IdentifierTypeError{Value: v}
}

// identOf converts a list of textual identifiers: empty is [Base], a single
// entry is parsed, several form a [Tuple].
func identOf(ids []string) Ident {
	ids = dedupe(ids)
	switch len(ids) {
	case 0:
		return Base{}
	case 1:
		return ParseIdent(ids[0])
	}
	return Tuple{IDs: ids}
}

// isBranchBase reports whether id is of the form "label@base".
func isBranchBase(id Ident) bool {
	q, ok := id.(Qualified)
	if !ok {
		return false
	}
	_, ok = q.Inner.(Base)
	return ok
}
