package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSourceNotFound = errors.New("source not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")

	// ErrFetchFailed marks a source whose fetch retries are exhausted.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrEmbedding marks a permanent embedding-provider rejection.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexMissing means the vector collection does not exist or its
	// dimension/metric differs from the configured contract. Provisioning
	// is an operator action, never done here.
	ErrIndexMissing = errors.New("vector index missing or misconfigured")
	ErrIndexWrite   = errors.New("vector index write failed")
	ErrIndexQuery   = errors.New("vector index query failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
