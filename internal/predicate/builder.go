package predicate

import "github.com/goliatone/go-statusfor/internal/domain"

// HasStatus builds "state is set and later than every other set status".
// statuses is the full list of active statuses of the entity type.
func HasStatus(state string, statuses []string) Expr {
	column := domain.FieldName(state)
	expr := And{NotNull{Column: column}}
	for _, other := range competitors(state, statuses) {
		otherColumn := domain.FieldName(other)
		expr = append(expr, Or{
			Greater{Left: column, Right: otherColumn},
			IsNull{Column: otherColumn},
		})
	}
	return expr
}

// LacksStatus builds the exact complement of HasStatus: state is null, or some
// other set status is at least as recent.
func LacksStatus(state string, statuses []string) Expr {
	column := domain.FieldName(state)
	expr := Or{IsNull{Column: column}}
	for _, other := range competitors(state, statuses) {
		otherColumn := domain.FieldName(other)
		expr = append(expr, And{
			LessOrEqual{Left: column, Right: otherColumn},
			NotNull{Column: otherColumn},
		})
	}
	return expr
}

// EverHadAll builds "every listed status has been set", ignoring recency.
func EverHadAll(states []string) Expr {
	expr := And{}
	seen := make(map[string]struct{}, len(states))
	for _, state := range states {
		if _, ok := seen[state]; ok {
			continue
		}
		seen[state] = struct{}{}
		expr = append(expr, NotNull{Column: domain.FieldName(state)})
	}
	return expr
}

// Simple builds the plain toggle form of HasStatus, used when a status has no
// competitors.
func Simple(state string) Expr {
	return NotNull{Column: domain.FieldName(state)}
}

// SimpleNot is the complement of Simple.
func SimpleNot(state string) Expr {
	return IsNull{Column: domain.FieldName(state)}
}

func competitors(state string, statuses []string) []string {
	var others []string
	seen := map[string]struct{}{state: {}}
	for _, other := range statuses {
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		others = append(others, other)
	}
	return others
}
