package docstore

import (
	"fmt"

	"github.com/dmitrijs2005/krishimitra/internal/common"
)

// CorruptStateError reports a namespace whose stored value does not decode
// as a database. It matches common.ErrCorruptState with errors.Is.
type CorruptStateError struct {
	Namespace string
	Err       error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("namespace %q: corrupt state: %v", e.Namespace, e.Err)
}

func (e *CorruptStateError) Unwrap() []error {
	return []error{common.ErrCorruptState, e.Err}
}
