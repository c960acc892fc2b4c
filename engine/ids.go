package engine

import "github.com/google/uuid"

// newRunID returns a globally unique run identifier, used as the engine's
// handle for Cancel and as the default snapshot store key.
func newRunID() string {
	return "run-" + uuid.NewString()
}
