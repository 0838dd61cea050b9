package core

import "context"

// Store defines the contract of the document store collaborator.
// Adhering to this interface keeps the controllers independent of the
// backend (in-memory, directory, SQL snapshot, hosted databases).
type Store interface {
	// Create adds a document and returns the identifier assigned by the store.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Update replaces the given fields of an existing document.
	// Fields not present in the patch are left as they are.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe opens a live query on a collection. The current snapshot is
	// delivered first, then a full snapshot after every change.
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// Subscription is a cancellable live query handle.
type Subscription interface {
	// Snapshots delivers full collection snapshots. Only the latest
	// undelivered snapshot is kept. The channel is closed on Unsubscribe
	// or when the subscription fails.
	Snapshots() <-chan Snapshot

	// Err returns the failure that closed the channel, if any.
	Err() error

	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}
