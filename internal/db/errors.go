package db

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op names a storage operation for error context.
type Op string

const (
	OpGet Op = "get"
	OpSet Op = "set"
	OpDel Op = "del"
)

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("db %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
