package store

import (
	"context"

	"github.com/arcs-project/arcs-core/internal/crdt"
	"github.com/arcs-project/arcs-core/internal/wire"
)

// ReceiverFunc is invoked by a Driver whenever a lower-level message
// (another replica's delta, a cold-start snapshot) arrives for the
// storage key the driver was constructed against.
type ReceiverFunc func(data interface{}, version crdt.VersionVector)

// Driver is the contract every storage backend implements, per spec.md
// §6: registerReceiver installs the callback for driver-originated
// messages, and send pushes a local update, reporting whether it was
// accepted. A false return means the store must hold the write in its
// RetryLedger and attempt it again later — it is not a hard failure.
type Driver interface {
	// Key returns the storage key this driver instance is bound to.
	Key() wire.StorageKey

	// RegisterReceiver installs the callback for inbound messages. The
	// store calls it once per driver, from New.
	RegisterReceiver(receiver ReceiverFunc)

	// Send pushes data, tagged with version, to the backend. It
	// returns false on a transient failure the caller should retry,
	// and a non-nil error only for conditions retrying cannot fix.
	Send(ctx context.Context, data interface{}, version crdt.VersionVector) (bool, error)

	// Close releases any resources (connections, goroutines) the
	// driver holds.
	Close() error
}
