package domain

import "errors"

// ErrTransactionNotFound is returned when a transaction ID cannot be found in the store
// or belongs to a different user.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrTaskNotFound is returned when a task ID cannot be found in the store
// or its transaction belongs to a different user.
var ErrTaskNotFound = errors.New("task not found")

// ErrStatusConflict is returned by compare-and-set when the stored status no longer
// matches the expected one.
var ErrStatusConflict = errors.New("transaction status changed concurrently")

// ErrInvalidStage is returned when a stage ID is not part of the catalog.
var ErrInvalidStage = errors.New("invalid stage")

// ErrDuplicateTransaction is returned when an offer already has a transaction.
var ErrDuplicateTransaction = errors.New("transaction already exists for offer")

// ErrInvalidRequest is returned when a caller supplies incomplete or malformed input.
var ErrInvalidRequest = errors.New("invalid request")
