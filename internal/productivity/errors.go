package productivity

import (
	"fmt"

	"github.com/google/uuid"
)

// PersistenceError reports a failure in the storage collaborator
type PersistenceError struct {
	Op     string
	UserID uuid.UUID
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("productivity: %s for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceErr(op string, userID uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, UserID: userID, Err: err}
}
