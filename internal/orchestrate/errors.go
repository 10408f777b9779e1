// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package orchestrate

import (
	"errors"
	"fmt"
)

// ErrEngineNotTrained marks the deterministic condition where the ML
// backend has no trained model. Routing resolves it by taking the SQL
// path; it is never surfaced to the dashboard as an error.
var ErrEngineNotTrained = errors.New("engine not trained")

// FetchError wraps a transport-level failure from one endpoint family.
type FetchError struct {
	// Family is the endpoint family that failed.
	Family Source

	// Operation is the upstream operation name.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch %q: %v", e.Family, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// TotalFailureError is the only error class surfaced to the dashboard: the
// single logical fetch failed on both ML and SQL, or every entity fetch in
// a fan-out batch failed. The UI presents it as an error state with a
// manual retry affordance.
type TotalFailureError struct {
	// MLErr is the ML attempt's error on the single-fetch path, nil for
	// fan-out total failures.
	MLErr error

	// SQLErr is the SQL attempt's error on the single-fetch path, nil for
	// fan-out total failures.
	SQLErr error

	// FailedEntities is the number of entities that failed on the fan-out
	// path, zero for single-fetch total failures.
	FailedEntities int

	// LastErr is a representative entity error on the fan-out path.
	LastErr error
}

// Error implements the error interface.
func (e *TotalFailureError) Error() string {
	if e.FailedEntities > 0 {
		return fmt.Sprintf("total failure: all %d entity fetches failed (last: %v)", e.FailedEntities, e.LastErr)
	}
	return fmt.Sprintf("total failure: ml: %v; sql fallback: %v", e.MLErr, e.SQLErr)
}

// Unwrap exposes the most relevant underlying error for errors.Is/As.
func (e *TotalFailureError) Unwrap() error {
	if e.LastErr != nil {
		return e.LastErr
	}
	return e.SQLErr
}

// IsTotalFailure reports whether err is (or wraps) a TotalFailureError.
func IsTotalFailure(err error) bool {
	var tf *TotalFailureError
	return errors.As(err, &tf)
}
