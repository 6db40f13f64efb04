package mapper

import (
	"errors"
	"fmt"

	"github.com/studiokicks/leaderboard/internal/model"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrBadDate      = errors.New("unparsable date")
)

// MappingError reports why a raw record could not be turned into a row.
// Kind is ErrMissingField or ErrBadDate.
type MappingError struct {
	Entity model.EntityType
	Field  string
	Kind   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Entity, e.Field, e.Kind)
}

func (e *MappingError) Unwrap() error {
	return e.Kind
}
