package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable receives the module's raw YAML config section before
// provisioning. Decode it here; leave resource work for Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner runs after configuration: resolve defaults, open
// resources, register services on the AppContext for other modules to
// discover.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator confirms a provisioned module is ready to run. Validate is
// called after Provision and must be read-only.
type Validator interface {
	Validate() error
}

// Starter begins a module's background work: pollers, listeners,
// schedulers. Runs once every module has provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper releases what Start acquired. Called in reverse start order
// during shutdown, bounded by the app's shutdown timeout.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader applies a fresh configuration without a restart. Modules
// that cannot reload safely simply don't implement it.
type Reloader interface {
	Reload(ctx *AppContext) error
}
