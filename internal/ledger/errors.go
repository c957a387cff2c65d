package ledger

import (
	"errors"
	"fmt"
)

// ErrChainIntegrity is the sentinel wrapped by every *IntegrityError.
var ErrChainIntegrity = errors.New("chain integrity violation")

type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violation at index %d: %s", e.Index, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrChainIntegrity
}
