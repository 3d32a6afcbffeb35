// Package recovery turns recovered panic values into errors.
package recovery

import (
	"fmt"
)

// PanicError is a value recovered from a panic.
type PanicError struct {
	Value any
}

func (x PanicError) Error() string { return fmt.Sprintf(`panic: %v`, x.Value) }

// Unwrap returns Value, if it is an error.
func (x PanicError) Unwrap() error {
	if err, ok := x.Value.(error); ok {
		return err
	}
	return nil
}
