package service

import (
	"context"
	"fmt"

	"monogest/backend/internal/directory"
	"monogest/backend/internal/domain"
)

// RecipientResolver turns recipient groups and composer pickers into
// concrete counterparty sets by querying the directory. Results always
// reflect current directory state; nothing here caches.
type RecipientResolver struct {
	dir directory.Directory
}

// NewRecipientResolver creates a resolver over the directory.
func NewRecipientResolver(dir directory.Directory) *RecipientResolver {
	return &RecipientResolver{dir: dir}
}

// ResolveGroup maps a named group to counterparty ids.
//
// Known groups: all-monotributistas (every client), staff (every staff
// member), assigned-clients (the requester's portfolio).
func (r *RecipientResolver) ResolveGroup(ctx context.Context, groupID, requesterID string) ([]string, error) {
	var filter directory.Filter

	switch groupID {
	case domain.GroupAllMonotributistas:
		filter = directory.Filter{Kind: domain.CounterpartyClient}
	case domain.GroupStaff:
		filter = directory.Filter{Kind: domain.CounterpartyStaff}
	case domain.GroupAssignedClients:
		filter = directory.Filter{Kind: domain.CounterpartyClient, AssignedStaff: requesterID}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}

	counterparties, err := r.dir.ListCounterparties(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(counterparties))
	for _, cp := range counterparties {
		ids = append(ids, cp.ID)
	}
	return ids, nil
}

// ResolveEligibleCounterparties returns who the requester may address in
// the composer picker. Staff see their assigned clients first, then the
// rest; clients see staff only.
func (r *RecipientResolver) ResolveEligibleCounterparties(ctx context.Context, requesterID string) ([]domain.Counterparty, error) {
	requester, err := r.dir.GetCounterparty(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	if requester.Kind == domain.CounterpartyClient {
		return r.dir.ListCounterparties(ctx, directory.Filter{Kind: domain.CounterpartyStaff})
	}

	assigned, err := r.dir.ListCounterparties(ctx, directory.Filter{
		Kind:          domain.CounterpartyClient,
		AssignedStaff: requesterID,
	})
	if err != nil {
		return nil, err
	}

	all, err := r.dir.ListCounterparties(ctx, directory.Filter{Kind: domain.CounterpartyClient})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(assigned))
	for _, cp := range assigned {
		seen[cp.ID] = true
	}
	out := assigned
	for _, cp := range all {
		if !seen[cp.ID] {
			out = append(out, cp)
		}
	}
	return out, nil
}

// StaffCounterpartsFor resolves the implicit staff side of a client-opened
// conversation: the client's assigned staff member, or every staff member
// when none is assigned.
func (r *RecipientResolver) StaffCounterpartsFor(ctx context.Context, clientID string) ([]string, error) {
	client, err := r.dir.GetCounterparty(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if client.AssignedStaffID != "" {
		return []string{client.AssignedStaffID}, nil
	}
	return r.ResolveGroup(ctx, domain.GroupStaff, clientID)
}
