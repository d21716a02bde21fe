package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPersistence      = errors.New("persistence failure")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidTask      = errors.New("invalid task")
)

// StoreError keeps the failed operation, its kind and the driver error.
// errors.Is matches both Kind and anything in the Err chain.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func persistenceErr(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrPersistence, Err: err}
}

func unavailableErr(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrStoreUnavailable, Err: err}
}

// wrapStoreErr keeps an existing StoreError intact so nested calls do not
// stack kinds.
func wrapStoreErr(op string, err error, kind func(string, error) error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return kind(op, err)
}
