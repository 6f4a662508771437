package predicate

import (
	"strings"
	"time"
)

// Expr is a boolean expression over an entity's timestamp columns. The only
// node kinds are the ones below; query backends compile them into their own
// representation.
type Expr interface {
	String() string
	expr()
}

// IsNull holds when the column has no value.
type IsNull struct{ Column string }

// NotNull holds when the column has a value.
type NotNull struct{ Column string }

// Greater holds when both columns have values and Left is strictly later.
type Greater struct{ Left, Right string }

// LessOrEqual holds when both columns have values and Left is not later than Right.
type LessOrEqual struct{ Left, Right string }

// And holds when every operand holds. An empty And is true.
type And []Expr

// Or holds when any operand holds. An empty Or is false.
type Or []Expr

// Not negates its operand.
type Not struct{ Expr Expr }

func (IsNull) expr()      {}
func (NotNull) expr()     {}
func (Greater) expr()     {}
func (LessOrEqual) expr() {}
func (And) expr()         {}
func (Or) expr()          {}
func (Not) expr()         {}

func (e IsNull) String() string      { return e.Column + " IS NULL" }
func (e NotNull) String() string     { return e.Column + " IS NOT NULL" }
func (e Greater) String() string     { return e.Left + " > " + e.Right }
func (e LessOrEqual) String() string { return e.Left + " <= " + e.Right }
func (e And) String() string         { return join([]Expr(e), " AND ", "TRUE") }
func (e Or) String() string          { return join([]Expr(e), " OR ", "FALSE") }
func (e Not) String() string         { return "NOT (" + e.Expr.String() + ")" }

func join(parts []Expr, sep, empty string) string {
	if len(parts) == 0 {
		return empty
	}
	if len(parts) == 1 {
		return parts[0].String()
	}
	rendered := make([]string, len(parts))
	for i, part := range parts {
		rendered[i] = part.String()
	}
	return "(" + strings.Join(rendered, sep) + ")"
}

// Lookup returns the value of a column. ok is false when the column is null.
type Lookup func(column string) (value time.Time, ok bool)

type truth uint8

const (
	unknown truth = iota
	yes
	no
)

func fromBool(b bool) truth {
	if b {
		return yes
	}
	return no
}

// Eval evaluates expr against lookup using SQL three-valued logic. A result
// of unknown counts as false, matching how a WHERE clause filters rows.
func Eval(expr Expr, lookup Lookup) bool {
	return eval(expr, lookup) == yes
}

func eval(expr Expr, lookup Lookup) truth {
	switch e := expr.(type) {
	case IsNull:
		_, ok := lookup(e.Column)
		return fromBool(!ok)
	case NotNull:
		_, ok := lookup(e.Column)
		return fromBool(ok)
	case Greater:
		left, lok := lookup(e.Left)
		right, rok := lookup(e.Right)
		if !lok || !rok {
			return unknown
		}
		return fromBool(left.After(right))
	case LessOrEqual:
		left, lok := lookup(e.Left)
		right, rok := lookup(e.Right)
		if !lok || !rok {
			return unknown
		}
		return fromBool(!left.After(right))
	case And:
		result := yes
		for _, part := range e {
			switch eval(part, lookup) {
			case no:
				return no
			case unknown:
				result = unknown
			}
		}
		return result
	case Or:
		result := no
		for _, part := range e {
			switch eval(part, lookup) {
			case yes:
				return yes
			case unknown:
				result = unknown
			}
		}
		return result
	case Not:
		switch eval(e.Expr, lookup) {
		case yes:
			return no
		case no:
			return yes
		default:
			return unknown
		}
	default:
		return unknown
	}
}

// Columns lists the columns referenced by expr, in first-seen order.
func Columns(expr Expr) []string {
	var columns []string
	seen := map[string]struct{}{}
	add := func(column string) {
		if _, ok := seen[column]; ok {
			return
		}
		seen[column] = struct{}{}
		columns = append(columns, column)
	}
	var walk func(Expr)
	walk = func(expr Expr) {
		switch e := expr.(type) {
		case IsNull:
			add(e.Column)
		case NotNull:
			add(e.Column)
		case Greater:
			add(e.Left)
			add(e.Right)
		case LessOrEqual:
			add(e.Left)
			add(e.Right)
		case And:
			for _, part := range e {
				walk(part)
			}
		case Or:
			for _, part := range e {
				walk(part)
			}
		case Not:
			walk(e.Expr)
		}
	}
	walk(expr)
	return columns
}
