package dispatch

import "errors"

// Sentinel errors for dispatch operations.
var (
	// ErrNoStore indicates the Manager was built without a task store.
	ErrNoStore = errors.New("dispatch: no task store configured")

	// ErrBadRoute indicates an executor name that is not a concrete
	// route (local or cloud).
	ErrBadRoute = errors.New("dispatch: executor name is not a route")

	// ErrDuplicateExecutor indicates a route already has an executor.
	ErrDuplicateExecutor = errors.New("dispatch: duplicate executor for route")

	// ErrNoExecutor indicates no executor is registered for the task's
	// resolved route.
	ErrNoExecutor = errors.New("dispatch: no executor for route")
)
