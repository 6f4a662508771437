package domain

import "strings"

const (
	// OffPrefix marks the event that clears a status ("not_archived").
	OffPrefix = "not_"
	// FieldSuffix is appended to a status name to obtain its timestamp column.
	FieldSuffix = "_at"
	// IncludingPrefix introduces a composite "ever had" filter name.
	IncludingPrefix = "status_including_"
	// IncludingSeparator joins status names inside a composite filter name.
	IncludingSeparator = "_and_"

	querySuffix  = "?"
	mutateSuffix = "!"
)

// FieldName returns the timestamp column backing a status.
func FieldName(status string) string {
	return status + FieldSuffix
}

// OffEvent returns the clearing event for a status.
func OffEvent(status string) string {
	return OffPrefix + status
}

// OnEvent strips the off prefix from an event. The boolean reports whether
// the event was an off event.
func OnEvent(event string) (string, bool) {
	if strings.HasPrefix(event, OffPrefix) {
		return strings.TrimPrefix(event, OffPrefix), true
	}
	return event, false
}

// QueryOperation names the instance operation reporting whether a status is set.
func QueryOperation(status string) string {
	return status + querySuffix
}

// ActivateOperation names the instance operation that sets a status.
func ActivateOperation(status string) string {
	return status + mutateSuffix
}

// DeactivateOperation names the instance operation that clears a status.
func DeactivateOperation(status string) string {
	return OffEvent(status) + mutateSuffix
}

// EventOperation maps a status string token ("archived", "not_archived") to
// the mutator operation it dispatches to.
func EventOperation(event string) string {
	return event + mutateSuffix
}

// Tokens splits a status string into events. Any run of whitespace separates
// tokens; an empty or blank string yields no tokens.
func Tokens(text string) []string {
	return strings.Fields(text)
}
