package thrashing

import "github.com/pkg/errors"

// ErrNoMemory is returned when tracking state could not be allocated
var ErrNoMemory error = errors.New("out of memory")

// ErrInvalidArgument is returned when an address, processor, or policy passed to the engine is not valid
var ErrInvalidArgument error = errors.New("invalid argument")

// ErrInvalidState is returned when an operation is not available in the current state of the module or space
var ErrInvalidState error = errors.New("invalid state")

// ErrRegistryNotEmpty is returned from Space.Unload if pinned pages are still registered for deferred unpin
var ErrRegistryNotEmpty error = errors.New("pinned page registry is not empty")
