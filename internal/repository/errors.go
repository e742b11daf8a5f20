// Package repository provides raw-SQL data access for the platform's
// tables.  This file defines sentinel error values reused across multiple
// repositories so that higher layers such as handlers can distinguish
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a requested row does not exist.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// e.g. two concurrent bookings landing in the same inspector time bucket or
// a second certificate for an inspection.  Handlers translate it into an
// HTTP 409 response or, for bookings, a validation error.
var ErrDuplicate = errors.New("duplicate")

// ErrAlreadyProcessed is returned by idempotency checks when an event id has
// been recorded by the same consumer before.  Callers treat it as a no-op,
// not a failure.
var ErrAlreadyProcessed = errors.New("event already processed")

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (error number 1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
