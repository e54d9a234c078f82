// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (which component failed) and Kind (error
// category). The Error type carries the type tag and native address involved
// and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseWrapper, errors.KindAllocation).
//		Tag("Circle").
//		Address(0x1040).
//		Detail("constructor returned null").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(errors.PhaseProxy, "Listener", cause)
//	err := errors.AttachmentFailed(cause)
//
// Match categories with the sentinels:
//
//	if errors.Is(err, bridgeerrors.ErrAllocation) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
