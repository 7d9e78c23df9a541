package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an engine instance. configDir points at the engine's
// settings directory; implementations may ignore it.
type Factory func(configDir string) (Engine, error)

var (
	driversMu sync.Mutex
	drivers   = make(map[string]Factory)
	opened    = make(map[string]bool)
)

// ErrAlreadyOpen is returned when a second Open is attempted for a driver
// that already produced an engine in this process. Engines own process-wide
// resources (sockets, settings files, hash database), so the lifecycle is
// one open per driver per process.
var ErrAlreadyOpen = fmt.Errorf("engine already open in this process")

// Register makes a driver available under the given name. It panics on a
// duplicate name, matching database/sql driver semantics.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if factory == nil {
		panic("engine: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("engine: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// Drivers returns the sorted names of registered drivers.
func Drivers() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the named engine. The returned engine is not yet initialized;
// the caller wires a Sink via Initialize and releases it via Shutdown.
func Open(name, configDir string) (Engine, error) {
	driversMu.Lock()
	defer driversMu.Unlock()
	factory, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown engine driver %q (registered: %v)", name, driverNamesLocked())
	}
	if opened[name] {
		return nil, fmt.Errorf("open engine %q: %w", name, ErrAlreadyOpen)
	}
	eng, err := factory(configDir)
	if err != nil {
		return nil, fmt.Errorf("open engine %q: %w", name, err)
	}
	opened[name] = true
	return eng, nil
}

func driverNamesLocked() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resetOpened is used by tests to allow a fresh Open cycle.
func resetOpened(name string) {
	driversMu.Lock()
	defer driversMu.Unlock()
	delete(opened, name)
}
