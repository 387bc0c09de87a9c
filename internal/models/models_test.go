package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceCartUsesMinorUnits(t *testing.T) {
	detail := PriceCart("c1", []CartItem{
		{ProductID: "p1", UnitPrice: 0.1, Quantity: 3},
		{ProductID: "p2", UnitPrice: 19.99, Quantity: 2},
	})
	assert.Equal(t, int64(30+3998), detail.TotalCents)
	assert.InDelta(t, 40.28, detail.Total, 0.0001)
	assert.Equal(t, 5, detail.ItemCount)
	assert.InDelta(t, 39.98, detail.Items[1].LineTotal, 0.0001)

	empty := PriceCart("c2", nil)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.TotalCents)
}

func TestEnrollmentActionStatus(t *testing.T) {
	status, ok := EnrollmentActionApprove.Status()
	assert.True(t, ok)
	assert.Equal(t, EnrollmentStatusApproved, status)

	status, ok = EnrollmentActionReject.Status()
	assert.True(t, ok)
	assert.Equal(t, EnrollmentStatusRejected, status)

	_, ok = EnrollmentAction("cancel").Status()
	assert.False(t, ok)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleManager.Valid())
	assert.False(t, UserRole("ADMIN").Valid())
}
