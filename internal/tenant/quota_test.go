package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asKind(t *testing.T, err error) apperr.Kind {
	t.Helper()
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	return ae.Kind
}

func TestCheckSubscription_FreePlanNeverBlocked(t *testing.T) {
	overdue := SubscriptionOverdue
	tn := &Tenant{SubscriptionStatus: &overdue}
	plan := &Plan{Slug: PlanGratuito, Price: 0}
	assert.NoError(t, CheckSubscription(tn, plan))
}

func TestCheckSubscription_NoSubscriptionStatusYet(t *testing.T) {
	tn := &Tenant{SubscriptionStatus: nil}
	plan := &Plan{Slug: PlanBasico, Price: 49.90}
	assert.NoError(t, CheckSubscription(tn, plan))
}

func TestCheckSubscription_PaidPlanBlocksOverdueAndCanceled(t *testing.T) {
	plan := &Plan{Slug: PlanBasico, Price: 49.90}

	overdue := SubscriptionOverdue
	err := CheckSubscription(&Tenant{SubscriptionStatus: &overdue}, plan)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, asKind(t, err))

	canceled := SubscriptionCanceled
	err = CheckSubscription(&Tenant{SubscriptionStatus: &canceled}, plan)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, asKind(t, err))
}

func TestCheckSubscription_PaidPlanAllowsActiveAndPending(t *testing.T) {
	plan := &Plan{Slug: PlanBasico, Price: 49.90}

	active := SubscriptionActive
	assert.NoError(t, CheckSubscription(&Tenant{SubscriptionStatus: &active}, plan))

	pending := SubscriptionPending
	assert.NoError(t, CheckSubscription(&Tenant{SubscriptionStatus: &pending}, plan))
}

type fakeDocumentCounter struct {
	count int
	err   error
}

func (f *fakeDocumentCounter) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return f.count, f.err
}

func TestCheckDocumentQuota_BlocksAtLimit(t *testing.T) {
	plan := &Plan{DocumentLimit: 5}
	err := CheckDocumentQuota(context.Background(), &fakeDocumentCounter{count: 5}, uuid.New(), plan)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, asKind(t, err))
}

func TestCheckDocumentQuota_AllowsBelowLimit(t *testing.T) {
	plan := &Plan{DocumentLimit: 5}
	err := CheckDocumentQuota(context.Background(), &fakeDocumentCounter{count: 4}, uuid.New(), plan)
	assert.NoError(t, err)
}

func TestCheckDocumentQuota_PropagatesCountError(t *testing.T) {
	plan := &Plan{DocumentLimit: 5}
	boom := errors.New("db unreachable")
	err := CheckDocumentQuota(context.Background(), &fakeDocumentCounter{err: boom}, uuid.New(), plan)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, asKind(t, err))
}
