// Package query interprets caller-supplied filter and sort parameters
// against a per-entity whitelist of filterable fields, producing a predicate
// that the store applies to a select.
//
// The parameter grammar matches what the public API has always exposed:
//
//	date[after]=2020-08-01        inclusive lower bound
//	date[before]=2020-08-31       inclusive upper bound
//	date[strictly_after]=...      exclusive bounds
//	date[strictly_before]=...
//	order[date]=asc               sort keys apply in the order given
//	isSprintable=true             exact match
//	page=2&itemsPerPage=50        pagination
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Kind is the value type a field is parsed as.
type Kind int

const (
	String Kind = iota
	Int
	Bool
	Date
)

// Field declares what a single filterable field supports.
type Field struct {
	Column string // SQL column the parameter maps to
	Kind   Kind
	Exact  bool // supports exact match
	Range  bool // supports before/after comparisons
	Order  bool // supports ordering
}

// Spec is the declared filter surface of one entity.
type Spec struct {
	Entity   string
	Fields   map[string]Field
	TieBreak string // column appended to every ordering for stable, deterministic results
}

// UnsupportedFilterError reports a filter or sort the entity does not
// declare. It is surfaced to the caller instead of silently dropping the
// parameter, which would corrupt the caller's expectations about the result
// set.
type UnsupportedFilterError struct {
	Entity string
	Param  string
	Reason string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("unsupported filter %q on %s: %s", e.Param, e.Entity, e.Reason)
}

// Op is a comparison operator on a condition.
type Op int

const (
	OpEq  Op = iota
	OpGte    // after (inclusive)
	OpLte    // before (inclusive)
	OpGt     // strictly_after
	OpLt     // strictly_before
)

// Cond is one predicate; multiple conditions compose with AND.
type Cond struct {
	Column string
	Op     Op
	Value  interface{}
}

// Sort is one ordering key.
type Sort struct {
	Column string
	Desc   bool
}

// Query is a parsed, validated query ready to apply to a select.
type Query struct {
	Conds    []Cond
	Sorts    []Sort
	TieBreak string
	Page     int
	PerPage  int
}

const (
	DefaultItemsPerPage = 30
	MaxItemsPerPage     = 100
)

// Parse validates a raw URL query string against the declared field
// whitelist. The raw string is walked pair by pair so that multiple
// order[...] keys keep the order the caller gave them, which url.Values
// would lose.
func (s Spec) Parse(rawQuery string) (*Query, error) {
	q := &Query{TieBreak: s.TieBreak, Page: 1, PerPage: DefaultItemsPerPage}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, &UnsupportedFilterError{Entity: s.Entity, Param: rawKey, Reason: "malformed parameter name"}
		}
		val, err := url.QueryUnescape(rawVal)
		if err != nil {
			return nil, &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "malformed parameter value"}
		}

		base, modifier := splitKey(key)
		switch {
		case base == "page" && modifier == "":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return nil, &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "page must be a positive integer"}
			}
			q.Page = n
		case base == "itemsPerPage" && modifier == "":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return nil, &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "itemsPerPage must be a positive integer"}
			}
			if n > MaxItemsPerPage {
				n = MaxItemsPerPage
			}
			q.PerPage = n
		case base == "order":
			if err := s.parseOrder(q, key, modifier, val); err != nil {
				return nil, err
			}
		case modifier != "":
			if err := s.parseRange(q, key, base, modifier, val); err != nil {
				return nil, err
			}
		default:
			if err := s.parseExact(q, key, base, val); err != nil {
				return nil, err
			}
		}
	}

	return q, nil
}

func (s Spec) parseOrder(q *Query, key, field, val string) error {
	f, ok := s.Fields[field]
	if !ok {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "unknown field"}
	}
	if !f.Order {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "field does not support ordering"}
	}
	switch strings.ToLower(val) {
	case "", "asc":
		q.Sorts = append(q.Sorts, Sort{Column: f.Column})
	case "desc":
		q.Sorts = append(q.Sorts, Sort{Column: f.Column, Desc: true})
	default:
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "order direction must be asc or desc"}
	}
	return nil
}

func (s Spec) parseRange(q *Query, key, field, modifier, val string) error {
	f, ok := s.Fields[field]
	if !ok {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "unknown field"}
	}
	if !f.Range {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "field does not support range comparisons"}
	}
	var op Op
	switch modifier {
	case "after":
		op = OpGte
	case "before":
		op = OpLte
	case "strictly_after":
		op = OpGt
	case "strictly_before":
		op = OpLt
	default:
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: fmt.Sprintf("unknown comparison %q", modifier)}
	}
	v, err := parseValue(f.Kind, val)
	if err != nil {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: err.Error()}
	}
	q.Conds = append(q.Conds, Cond{Column: f.Column, Op: op, Value: v})
	return nil
}

func (s Spec) parseExact(q *Query, key, field, val string) error {
	f, ok := s.Fields[field]
	if !ok {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "unknown field"}
	}
	if !f.Exact {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: "field does not support exact match"}
	}
	v, err := parseValue(f.Kind, val)
	if err != nil {
		return &UnsupportedFilterError{Entity: s.Entity, Param: key, Reason: err.Error()}
	}
	q.Conds = append(q.Conds, Cond{Column: f.Column, Op: OpEq, Value: v})
	return nil
}

// splitKey breaks "date[after]" into ("date", "after"); a key without
// brackets comes back with an empty modifier.
func splitKey(key string) (base, modifier string) {
	open := strings.Index(key, "[")
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseValue(kind Kind, val string) (interface{}, error) {
	switch kind {
	case Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a boolean", val)
		}
		return b, nil
	case Int:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer", val)
		}
		return n, nil
	case Date:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("value %q is not a date (want YYYY-MM-DD or RFC 3339)", val)
	default:
		return val, nil
	}
}

// Apply adds the query's predicate, ordering and pagination to a select.
// Sort keys are applied in the order given; the tiebreak column is always
// appended so result order is deterministic even without an explicit sort.
func (q *Query) Apply(sel *bun.SelectQuery) *bun.SelectQuery {
	for _, c := range q.Conds {
		switch c.Op {
		case OpEq:
			sel = sel.Where("? = ?", bun.Ident(c.Column), c.Value)
		case OpGte:
			sel = sel.Where("? >= ?", bun.Ident(c.Column), c.Value)
		case OpLte:
			sel = sel.Where("? <= ?", bun.Ident(c.Column), c.Value)
		case OpGt:
			sel = sel.Where("? > ?", bun.Ident(c.Column), c.Value)
		case OpLt:
			sel = sel.Where("? < ?", bun.Ident(c.Column), c.Value)
		}
	}
	for _, s := range q.Sorts {
		if s.Desc {
			sel = sel.OrderExpr("? DESC", bun.Ident(s.Column))
		} else {
			sel = sel.OrderExpr("? ASC", bun.Ident(s.Column))
		}
	}
	if q.TieBreak != "" {
		sel = sel.OrderExpr("? ASC", bun.Ident(q.TieBreak))
	}
	return sel.Limit(q.PerPage).Offset((q.Page - 1) * q.PerPage)
}
