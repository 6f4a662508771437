package statusfor

import (
	"github.com/goliatone/go-statusfor/internal/domain"
	"github.com/goliatone/go-statusfor/internal/storage"
)

var (
	// ErrUnsupportedStatus is returned for status string tokens that are not
	// events of the entity type.
	ErrUnsupportedStatus = domain.ErrUnsupportedStatus
	ErrUnknownStatus     = domain.ErrUnknownStatus
	ErrUnknownFilter     = domain.ErrUnknownFilter
	ErrInvalidModel      = domain.ErrInvalidModel
	ErrInvalidStatusName = domain.ErrInvalidStatusName
	// ErrRecordNotFound is returned when a stored record is missing.
	ErrRecordNotFound = storage.ErrRecordNotFound
)
