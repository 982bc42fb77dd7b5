package ledger

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

// ReferenceLength is the length of generated purchase references.
const ReferenceLength = 21

// ReferenceGenerator returns a new opaque purchase reference per call.
type ReferenceGenerator func() string

// NewReferenceGenerator returns a URL-safe random generator. References are
// external receipt identifiers and carry no information about the
// purchase's sequential id.
func NewReferenceGenerator() (ReferenceGenerator, error) {
	gen, err := nanoid.Standard(ReferenceLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create reference generator: %w", err)
	}
	return func() string { return gen() }, nil
}
