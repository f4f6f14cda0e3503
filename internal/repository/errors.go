// Package repository defines the payment storage contract, the error kinds
// shared by every backend, and the two concrete backends: PaymentRepo over
// MySQL and PaymentFileRepo over a flat append-only file.  Callers
// distinguish failure scenarios with errors.Is: ErrNotFound means the
// identity is absent, ErrUnsupported means the backend cannot perform the
// operation at all, and ErrStorage (carried by *StorageError) means the
// backend could not be reached or could not complete the I/O.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no payment exists for the requested id.
var ErrNotFound = errors.New("payment not found")

// ErrUnsupported is returned by a backend that does not implement an
// operation.  It is never a silent no-op.
var ErrUnsupported = errors.New("operation not supported by backend")

// ErrStorage matches every *StorageError through errors.Is.
var ErrStorage = errors.New("storage failure")

// StorageError reports an I/O or connectivity failure of one backend.
// Backend names the store ("mysql", "file", ...) and Op the contract
// operation that failed.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: storage failure", e.Backend, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(backend, op string, err error) error {
	return &StorageError{Backend: backend, Op: op, Err: err}
}
