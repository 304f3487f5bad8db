package scanner

import (
	"fmt"
	"strings"

	"github.com/ironsheep/docscan-mcp/internal/accel"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/perspective"
)

// Backend names.
const (
	BackendReference   = "reference"
	BackendAccelerated = "accelerated"
)

// Backend bundles the implementations of the pipeline's heavy stages.
type Backend struct {
	Name      string
	Convolver imaging.Convolver
	Solver    perspective.Solver
	Warper    perspective.Warper
}

// NewBackend returns the backend with the given name. An empty name selects
// the reference backend.
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendReference:
		return Backend{
			Name:      BackendReference,
			Convolver: imaging.ReferenceConvolver{},
			Solver:    perspective.GaussSolver{},
			Warper:    perspective.ReferenceWarper{},
		}, nil
	case BackendAccelerated:
		return Backend{
			Name:      BackendAccelerated,
			Convolver: accel.Convolver{},
			Solver:    accel.Solver{},
			Warper:    accel.Warper{},
		}, nil
	}
	return Backend{}, fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownBackend, name, BackendReference, BackendAccelerated)
}
