package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rentledger/internal/domain"
)

func TestSendRentRemindersNotifiesArrears(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.landlord(t, "Wanjiru")
	prop := h.property(t, owner, "Riverside")
	a1 := h.unit(t, owner, prop, "A1", 10000)
	a2 := h.unit(t, owner, prop, "A2", 8000)
	otieno := h.tenant(t, prop, "Otieno")
	akinyi := h.tenant(t, prop, "Akinyi")
	l1 := h.lease(t, owner, otieno, a1, 10000)
	l2 := h.lease(t, owner, akinyi, a2, 8000)

	_, err := h.pays.RecordManualPayment(ctx, asLandlord(owner), l1.ID, june2025, decimal.NewFromInt(4000), nil)
	require.NoError(t, err)
	_, err = h.pays.RecordManualPayment(ctx, asLandlord(owner), l2.ID, june2025, decimal.NewFromInt(8000), nil)
	require.NoError(t, err)

	// A landlord without arrears gets no digest.
	quiet := h.landlord(t, "Mwangi")
	h.property(t, quiet, "Hillview")

	run, err := h.notes.SendRentReminders(ctx, domain.SystemIdentity(), domain.Period{})
	require.NoError(t, err)
	assert.Equal(t, june2025, run.Period)
	assert.Equal(t, 2, run.Landlords)
	assert.Equal(t, 1, run.TenantsReminded)
	assert.Equal(t, 1, run.DigestsSent)

	inbox, err := h.notes.ListNotifications(ctx, asTenant(otieno), false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Contains(t, inbox[0].Message, "KES 6000.00")
	assert.False(t, inbox[0].IsRead)

	none, err := h.notes.ListNotifications(ctx, asTenant(akinyi), false)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	digest, err := h.notes.ListNotifications(ctx, asLandlord(owner), false)
	require.NoError(t, err)
	require.Len(t, digest, 1)
	assert.Contains(t, digest[0].Message, "1 tenant(s) owe a total of KES 6000.00")
}

func TestSendRentRemindersRequiresJobPermission(t *testing.T) {
	h := newHarness(t)
	owner := h.landlord(t, "Wanjiru")

	_, err := h.notes.SendRentReminders(context.Background(), asLandlord(owner), june2025)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestMarkNotificationRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.landlord(t, "Wanjiru")
	prop := h.property(t, owner, "Riverside")
	unit := h.unit(t, owner, prop, "A1", 10000)
	otieno := h.tenant(t, prop, "Otieno")
	akinyi := h.tenant(t, prop, "Akinyi")
	h.lease(t, owner, otieno, unit, 10000)

	_, err := h.notes.SendRentReminders(ctx, domain.SystemIdentity(), june2025)
	require.NoError(t, err)

	inbox, err := h.notes.ListNotifications(ctx, asTenant(otieno), true)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	err = h.notes.MarkRead(ctx, asTenant(akinyi), inbox[0].ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, h.notes.MarkRead(ctx, asTenant(otieno), inbox[0].ID))
	unread, err := h.notes.ListNotifications(ctx, asTenant(otieno), true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := h.notes.ListNotifications(ctx, asTenant(otieno), false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsRead)
}
