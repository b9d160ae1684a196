package tenant

import (
	"context"

	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/google/uuid"
)

// DocumentCounter is the narrow slice of internal/document.Repository the
// quota gate needs. Declared here, not imported from document, to keep
// internal/tenant free of a dependency on internal/document.
type DocumentCounter interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// CheckSubscription implements spec §4.6's subscription check: paid plans
// (plan.Price > 0) with an OVERDUE or CANCELED subscription are blocked.
// Free plans are never blocked here. There is no super-admin exemption: the
// check sees only the tenant and its plan, not the caller's role.
func CheckSubscription(t *Tenant, plan *Plan) error {
	if plan.Price <= 0 {
		return nil
	}
	if t.SubscriptionStatus == nil {
		return nil
	}
	switch *t.SubscriptionStatus {
	case SubscriptionOverdue, SubscriptionCanceled:
		return apperr.Forbidden("subscription is irregular")
	}
	return nil
}

// CheckUserQuota implements spec §4.6's user limit check: occupancy (as
// defined for Invite, spec §4.4) must stay below plan.UserLimit.
func (r *Repository) CheckUserQuota(ctx context.Context, tenantID uuid.UUID, plan *Plan) error {
	occupancy, err := r.CountOccupancy(ctx, tenantID, []string{"PENDING", "ACTIVE"})
	if err != nil {
		return apperr.Internal(err)
	}
	if occupancy >= plan.UserLimit {
		return apperr.Forbidden("tenant has reached its user limit")
	}
	return nil
}

// CheckDocumentQuota implements spec §4.6's document limit check. It runs
// through Service.CheckQuota from the document handler's checkQuota hook
// (wired in cmd/server), before document.Service.Upload persists anything.
func CheckDocumentQuota(ctx context.Context, docs DocumentCounter, tenantID uuid.UUID, plan *Plan) error {
	count, err := docs.CountByTenant(ctx, tenantID)
	if err != nil {
		return apperr.Internal(err)
	}
	if count >= plan.DocumentLimit {
		return apperr.Forbidden("tenant has reached its document limit")
	}
	return nil
}

// CheckQuota runs the full spec §4.6 gate: subscription, then user limit,
// then document limit, resolving tenant+plan once. Used by the "upload
// document" call site; InviteMember calls CheckSubscription and
// CheckUserQuota directly.
func (s *Service) CheckQuota(ctx context.Context, tenantID uuid.UUID, docs DocumentCounter, checkUsers, checkDocuments bool) error {
	t, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return apperr.Internal(err)
	}
	plan, err := s.planRepo.ByID(ctx, t.PlanID)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := CheckSubscription(t, plan); err != nil {
		return err
	}
	if checkUsers {
		if err := s.tenantRepo.CheckUserQuota(ctx, tenantID, plan); err != nil {
			return err
		}
	}
	if checkDocuments && docs != nil {
		if err := CheckDocumentQuota(ctx, docs, tenantID, plan); err != nil {
			return err
		}
	}
	return nil
}
