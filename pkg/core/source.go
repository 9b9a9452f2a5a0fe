package core

import "context"

// UnitSource reads unit state from the service manager.
type UnitSource interface {
	// Units lists the service units currently known to the manager.
	Units(ctx context.Context) (Index, error)

	// Status returns the parsed status block of a single unit.
	Status(ctx context.Context, unit Unit) (StatusFields, error)

	// Tail returns the last n journal lines of a unit.
	Tail(ctx context.Context, unit Unit, n int) (LogLines, error)
}

// Dispatcher forwards lifecycle verbs to the service manager.
type Dispatcher interface {
	// Dispatch runs verb against unit and relays the raw output lines.
	// Output is never interpreted; it may be empty on success.
	Dispatch(ctx context.Context, verb Verb, unit Unit) ([]string, error)
}
