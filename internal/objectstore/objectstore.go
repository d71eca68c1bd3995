// Package objectstore abstracts the binary object store that holds
// attachment bytes. The store itself is an external collaborator; only the
// put/url/delete surface the mailbox needs is modeled here.
package objectstore

import "context"

// ObjectStore is the consumed interface of the external blob store.
// Locators are opaque paths namespaced as {ownerContext}/{purpose}_{ts}.{ext}.
type ObjectStore interface {
	// Put writes bytes under the locator, overwriting any previous object.
	Put(ctx context.Context, locator string, data []byte, contentType string) error

	// PublicURL resolves a locator to a URL suitable for direct fetch.
	// It does not fetch bytes and does not verify existence.
	PublicURL(locator string) string

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, locator string) error

	// List returns the locators under a prefix, for orphan sweeps.
	List(ctx context.Context, prefix string) ([]string, error)
}
