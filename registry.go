package standin

import (
	"sync"

	"github.com/standin/standin/internal/core"
)

// spaceFor returns the Space for the given test, creating one if needed.
// Multiple calls with the same TestReporter return the same Space, which is
// what gives each test exactly one Space generation.
//
// If the TestReporter supports Cleanup (like *testing.T), teardown runs
// automatically when the test completes and the entry is removed from the
// registry - so subjects are restored even when the test never called
// Teardown itself.
func spaceFor(t TestReporter) *core.Space {
	registryMu.Lock()
	defer registryMu.Unlock()

	if space, ok := registry[t]; ok {
		return space
	}

	space := core.NewSpace()
	registry[t] = space

	if cr, ok := t.(core.CleanupRegistrar); ok {
		cr.Cleanup(func() {
			space.ResetAll()

			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()
		})
	}

	return space
}

// lookupSpace returns the Space for t without creating one.
func lookupSpace(t TestReporter) (*core.Space, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	space, ok := registry[t]

	return space, ok
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional: it maps each test to its Space
	registry = make(map[TestReporter]*core.Space)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)
