package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-statusfor/internal/predicate"
	"github.com/uptrace/bun"
)

// Fragment is a bun WHERE condition with its positional arguments. Column
// references are qualified with ?TableAlias so the fragment binds to the
// query model.
type Fragment struct {
	SQL  string
	Args []any
}

// Compile renders expr as a bun WHERE fragment.
func Compile(expr predicate.Expr) (Fragment, error) {
	var b builder
	if err := b.write(expr); err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: b.sql.String(), Args: b.args}, nil
}

// Apply adds expr as a WHERE condition of q.
func Apply(q *bun.SelectQuery, expr predicate.Expr) (*bun.SelectQuery, error) {
	fragment, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return q.Where(fragment.SQL, fragment.Args...), nil
}

// Processor returns a select processor adding expr as a WHERE condition,
// suitable for repository.SelectRawProcessor.
func Processor(expr predicate.Expr) (func(*bun.SelectQuery) *bun.SelectQuery, error) {
	fragment, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(fragment.SQL, fragment.Args...)
	}, nil
}

type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) column(name string) {
	b.sql.WriteString("?TableAlias.?")
	b.args = append(b.args, bun.Ident(name))
}

func (b *builder) write(expr predicate.Expr) error {
	switch e := expr.(type) {
	case predicate.IsNull:
		b.column(e.Column)
		b.sql.WriteString(" IS NULL")
	case predicate.NotNull:
		b.column(e.Column)
		b.sql.WriteString(" IS NOT NULL")
	case predicate.Greater:
		b.column(e.Left)
		b.sql.WriteString(" > ")
		b.column(e.Right)
	case predicate.LessOrEqual:
		b.column(e.Left)
		b.sql.WriteString(" <= ")
		b.column(e.Right)
	case predicate.And:
		return b.group([]predicate.Expr(e), " AND ", "1 = 1")
	case predicate.Or:
		return b.group([]predicate.Expr(e), " OR ", "1 = 0")
	case predicate.Not:
		b.sql.WriteString("NOT (")
		if err := b.write(e.Expr); err != nil {
			return err
		}
		b.sql.WriteString(")")
	case nil:
		return fmt.Errorf("status query: nil expression")
	default:
		return fmt.Errorf("status query: unsupported expression %T", expr)
	}
	return nil
}

func (b *builder) group(parts []predicate.Expr, sep, empty string) error {
	if len(parts) == 0 {
		b.sql.WriteString(empty)
		return nil
	}
	b.sql.WriteString("(")
	for i, part := range parts {
		if i > 0 {
			b.sql.WriteString(sep)
		}
		if err := b.write(part); err != nil {
			return err
		}
	}
	b.sql.WriteString(")")
	return nil
}
