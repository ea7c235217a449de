package domain

import (
	"errors"

	"github.com/orbital-cloud/usagemeter/internal/domain/credits"
)

var (
	// ErrUpstream signals an upstream billing API failure: transport error,
	// non-2xx status, or a malformed response body.
	ErrUpstream = errors.New("upstream api error")
	// ErrInvalidInput signals malformed input to a credit calculation.
	ErrInvalidInput = credits.ErrInvalidInput
	// ErrReportUnresolved signals that a report referenced by a message could
	// not be fetched and the fallback policy forbids estimating.
	ErrReportUnresolved = errors.New("report unresolved")
	// ErrPersistenceDisabled signals an operation that requires the database
	// while the service runs without one.
	ErrPersistenceDisabled = errors.New("persistence disabled")
)
