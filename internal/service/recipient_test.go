package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monogest/backend/internal/domain"
)

func TestRecipientResolver_ResolveGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("all-monotributistas resolves every client", func(t *testing.T) {
		ids, err := f.resolver.ResolveGroup(ctx, domain.GroupAllMonotributistas, "s1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"u1", "u2"}, ids)
	})

	t.Run("assigned-clients resolves the requester's portfolio", func(t *testing.T) {
		ids, err := f.resolver.ResolveGroup(ctx, domain.GroupAssignedClients, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, ids)
	})

	t.Run("unknown group ids are rejected", func(t *testing.T) {
		_, err := f.resolver.ResolveGroup(ctx, "vips", "s1")
		assert.ErrorIs(t, err, ErrUnknownGroup)
	})
}

func TestRecipientResolver_ResolveEligibleCounterparties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("clients only see staff", func(t *testing.T) {
		got, err := f.resolver.ResolveEligibleCounterparties(ctx, "u1")
		require.NoError(t, err)
		for _, cp := range got {
			assert.Equal(t, domain.CounterpartyStaff, cp.Kind)
		}
		assert.Len(t, got, 2)
	})

	t.Run("staff see assigned clients first, without duplicates", func(t *testing.T) {
		got, err := f.resolver.ResolveEligibleCounterparties(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "u1", got[0].ID)
		assert.Equal(t, "u2", got[1].ID)
	})
}

func TestRecipientResolver_StaffCounterpartsFor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("assigned client gets their accountant", func(t *testing.T) {
		staff, err := f.resolver.StaffCounterpartsFor(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, staff)
	})

	t.Run("unassigned client falls back to all staff", func(t *testing.T) {
		staff, err := f.resolver.StaffCounterpartsFor(ctx, "u2")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s1", "s2"}, staff)
	})
}
