// Package directory exposes the external counterparty directory: the
// listing of clients and staff the mailbox can address. The directory is
// owned by another subsystem; this package only consumes it.
package directory

import (
	"context"
	"errors"

	"monogest/backend/internal/domain"
)

// ErrCounterpartyNotFound means the id is unknown to the directory.
var ErrCounterpartyNotFound = errors.New("counterparty not found")

// Filter narrows a directory listing. Zero values mean "no constraint".
type Filter struct {
	Kind           domain.CounterpartyKind
	Classification string
	AssignedStaff  string
}

// Directory is the consumed interface of the counterparty directory.
type Directory interface {
	// GetCounterparty returns one counterparty by id.
	GetCounterparty(ctx context.Context, id string) (*domain.Counterparty, error)

	// ListCounterparties returns the counterparties matching the filter.
	// No caching: results reflect current directory state.
	ListCounterparties(ctx context.Context, filter Filter) ([]domain.Counterparty, error)
}
