package statuscmd

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-statusfor/internal/domain"
	"github.com/google/uuid"
)

const setStatusMessageType = "statusfor.status.set"

// ResultCallback receives the entity status after a successful command. It is
// optional and invoked synchronously from the handler.
type ResultCallback func(ResultEnvelope)

// ResultEnvelope captures the outcome of a status command.
type ResultEnvelope struct {
	EntityID uuid.UUID
	Status   string
	Current  string
}

// SetStatusCommand applies a status string to the stored entity with EntityID.
// A blank Status clears every status.
type SetStatusCommand struct {
	EntityID       uuid.UUID      `json:"entity_id"`
	Status         string         `json:"status"`
	ResultCallback ResultCallback `json:"-"`
}

// Type implements command.Message.
func (SetStatusCommand) Type() string { return setStatusMessageType }

// Validate checks the entity id and the syntax of every status token. Whether
// the tokens are configured for the entity is checked on execution.
func (m SetStatusCommand) Validate() error {
	errs := validation.Errors{}
	if m.EntityID == uuid.Nil {
		errs["entity_id"] = validation.NewError("statusfor.status.set.entity_id_required", "entity_id must be a valid identifier")
	}
	for _, token := range domain.Tokens(m.Status) {
		if err := domain.ValidateToken(token); err != nil {
			errs["status"] = validation.NewError("statusfor.status.set.token_invalid", "status token "+token+" is malformed")
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
