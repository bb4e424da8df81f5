package domain

import "errors"

// Failure taxonomy of the storage layer. Callers classify with errors.Is;
// every layer above wraps these with fmt.Errorf("...: %w", ...) context.
var (
	// ErrNotFound: the id/type/revision does not exist. Read paths return
	// nil instead; operations that require existence wrap this.
	ErrNotFound = errors.New("entity not found")

	// ErrConversion: graph element properties cannot be mapped to or from
	// the typed entity shape.
	ErrConversion = errors.New("conversion failed")

	// ErrInstantiation: the entity value itself could not be produced,
	// e.g. an unregistered kind. Distinct from ErrConversion.
	ErrInstantiation = errors.New("instantiation failed")

	// ErrUpdateConflict: optimistic concurrency violation, or re-adding an
	// already existing variant.
	ErrUpdateConflict = errors.New("update conflict")

	// ErrIllegalState: a single-assignment invariant was violated (PID
	// already set).
	ErrIllegalState = errors.New("illegal state")

	// ErrIllegalArgument: operation invoked on the wrong entity category.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrStorage: underlying graph adapter I/O failure.
	ErrStorage = errors.New("storage failure")
)
