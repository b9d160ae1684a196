package tenant

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/identity"
	"github.com/austrian-business-infrastructure/fo/pkg/crypto"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)
var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RegisterInput is the input to Register (spec §4.3).
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	CPF      *string
	Phone    *string
}

// RegisterResult bundles the created Tenant, Member and User.
type RegisterResult struct {
	Tenant *Tenant
	User   *identity.User
	Member *Member
}

// Service implements tenant/membership business logic (spec §4.3, §4.4).
type Service struct {
	pool       *pgxpool.Pool
	tenantRepo *Repository
	planRepo   *PlanRepository
	memberRepo *MemberRepository
	userRepo   *identity.Repository
	auditLog   *audit.Logger
}

func NewService(pool *pgxpool.Pool, tenantRepo *Repository, planRepo *PlanRepository, memberRepo *MemberRepository,
	userRepo *identity.Repository, auditLog *audit.Logger) *Service {
	return &Service{pool: pool, tenantRepo: tenantRepo, planRepo: planRepo, memberRepo: memberRepo, userRepo: userRepo, auditLog: auditLog}
}

// Register implements spec §4.3's exact transactional algorithm.
func (s *Service) Register(ctx context.Context, input *RegisterInput, ip, userAgent *string) (*RegisterResult, error) {
	if len(input.Password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	if err := crypto.ValidatePassword(input.Password, crypto.RegistrationPasswordPolicy()); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	passwordHash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	slug, err := s.reserveSlug(ctx, tx, input.Name)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.BySlugTx(ctx, tx, PlanGratuito)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("resolve plan %s: %w", PlanGratuito, err))
	}

	t := &Tenant{ID: uuid.New(), Name: input.Name, Slug: slug, Status: StatusActive, PlanID: plan.ID}
	if err := s.tenantRepo.Create(ctx, tx, t); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create tenant: %w", err))
	}

	u := &identity.User{
		ID: uuid.New(), TenantID: t.ID, Name: input.Name, Email: input.Email,
		PasswordHash: passwordHash, CPF: input.CPF, Phone: input.Phone,
		Role: "ADMIN", Status: identity.StatusActive,
	}
	if err := s.userRepo.Create(ctx, tx, u); err != nil {
		if err == identity.ErrEmailInUse {
			return nil, apperr.Conflict("email already in use")
		}
		if err == identity.ErrCpfInUse {
			return nil, apperr.Conflict("cpf already in use")
		}
		return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
	}

	m := &Member{TenantID: t.ID, UserID: &u.ID, Email: u.Email, Role: "ADMIN", Status: MemberActive}
	if err := s.memberRepo.CreateTx(ctx, tx, m); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create membership: %w", err))
	}

	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: t.ID, ActorKind: audit.ActorUser, ActorID: &u.ID,
		EntityType: audit.EntityUser, EntityID: u.ID, Action: audit.ActionUserCreated,
		IP: ip, UserAgent: userAgent,
	}); err != nil {
		return nil, apperr.Internal(fmt.Errorf("append audit: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal(fmt.Errorf("commit: %w", err))
	}

	return &RegisterResult{Tenant: t, User: u, Member: m}, nil
}

// CreateWithAdmin implements the super-admin "Create tenant with admin" op
// (spec §4.4): default plan basico, owner User ADMIN ACTIVE.
func (s *Service) CreateWithAdmin(ctx context.Context, input *RegisterInput) (*RegisterResult, error) {
	passwordHash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	slug, err := s.reserveSlug(ctx, tx, input.Name)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.BySlugTx(ctx, tx, PlanBasico)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("resolve plan %s: %w", PlanBasico, err))
	}

	t := &Tenant{ID: uuid.New(), Name: input.Name, Slug: slug, Status: StatusActive, PlanID: plan.ID}
	if err := s.tenantRepo.Create(ctx, tx, t); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create tenant: %w", err))
	}

	u := &identity.User{
		ID: uuid.New(), TenantID: t.ID, Name: input.Name, Email: input.Email,
		PasswordHash: passwordHash, Role: "ADMIN", Status: identity.StatusActive,
	}
	if err := s.userRepo.Create(ctx, tx, u); err != nil {
		if err == identity.ErrEmailInUse {
			return nil, apperr.Conflict("email already in use")
		}
		return nil, apperr.Internal(fmt.Errorf("create owner: %w", err))
	}

	m := &Member{TenantID: t.ID, UserID: &u.ID, Email: u.Email, Role: "ADMIN", Status: MemberActive}
	if err := s.memberRepo.CreateTx(ctx, tx, m); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create membership: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal(err)
	}
	return &RegisterResult{Tenant: t, User: u, Member: m}, nil
}

// reserveSlug derives a URL-safe slug from name, appending a random 4-char
// suffix on collision (spec §4.3 step 1). The uniqueness constraint on
// tenants.slug is what actually closes the TOCTOU race (spec §9 slug race
// note); this check only avoids a needless collision in the common case.
func (s *Service) reserveSlug(ctx context.Context, tx pgx.Tx, name string) (string, error) {
	base := baseSlug(name)
	slug := base
	for i := 0; i < 5; i++ {
		exists, err := s.tenantRepo.Exists(ctx, tx, slug)
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("check slug: %w", err))
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + randomSuffix(4)
	}
	return slug, nil
}

func baseSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "tenant"
	}
	return s
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

// BeginTx starts a transaction against the service's pool, for call sites
// (e.g. password reset) that need to commit a change alongside a row this
// package doesn't own.
func (s *Service) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	t, err := s.tenantRepo.GetByID(ctx, id)
	if err == ErrTenantNotFound {
		return nil, apperr.NotFound("tenant not found")
	}
	return t, err
}

// UpdateSubscriptionStatus applies an Asaas webhook's status update to the
// tenant matching asaasSubscriptionID (spec §6 External Interfaces: the
// gateway is an external collaborator, this is the only write path back
// from it into Tenant).
func (s *Service) UpdateSubscriptionStatus(ctx context.Context, asaasSubscriptionID string, status SubscriptionStatus) error {
	t, err := s.tenantRepo.ByAsaasSubscriptionID(ctx, asaasSubscriptionID)
	if err != nil {
		return apperr.NotFound("no tenant for subscription")
	}
	t.SubscriptionStatus = &status
	if err := s.tenantRepo.Update(ctx, t); err != nil {
		return apperr.Internal(fmt.Errorf("update subscription status: %w", err))
	}
	return nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	t, err := s.tenantRepo.GetBySlug(ctx, strings.ToLower(slug))
	if err == ErrTenantNotFound {
		return nil, apperr.NotFound("tenant not found")
	}
	return t, err
}

// TenantSummary is one row of ListMyTenants (spec §4.4).
type TenantSummary struct {
	TenantID   uuid.UUID
	Name       string
	Role       string
	IsPersonal bool
}

// ListMyTenants returns the user's own Tenant (role=ADMIN or SUPER_ADMIN,
// isPersonal=true) plus every active TenantMember (spec §4.4).
func (s *Service) ListMyTenants(ctx context.Context, user *identity.User) ([]TenantSummary, error) {
	home, err := s.tenantRepo.GetByID(ctx, user.TenantID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load home tenant: %w", err))
	}
	role := "ADMIN"
	if user.Role == "SUPER_ADMIN" {
		role = "SUPER_ADMIN"
	}
	out := []TenantSummary{{TenantID: home.ID, Name: home.Name, Role: role, IsPersonal: true}}

	members, err := s.memberRepo.ActiveForUser(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load memberships: %w", err))
	}
	for _, m := range members {
		t, err := s.tenantRepo.GetByID(ctx, m.TenantID)
		if err != nil {
			continue
		}
		out = append(out, TenantSummary{TenantID: t.ID, Name: t.Name, Role: m.Role, IsPersonal: false})
	}
	return out, nil
}

// SwitchTenant implements spec §4.3's switch-tenant authorization: (a) the
// user's own tenant — role SUPER_ADMIN if applicable else ADMIN; (b) an
// ACTIVE TenantMember row for the target — that role; (c) else forbidden.
func (s *Service) SwitchTenant(ctx context.Context, user *identity.User, targetTenantID uuid.UUID) (string, error) {
	if targetTenantID == user.TenantID {
		if user.Role == "SUPER_ADMIN" {
			return "SUPER_ADMIN", nil
		}
		return "ADMIN", nil
	}
	m, err := s.memberRepo.ByUserAndTenant(ctx, user.ID, targetTenantID)
	if err != nil {
		if err == ErrMemberNotFound {
			return "", apperr.Forbidden("not a member of this tenant")
		}
		return "", apperr.Internal(fmt.Errorf("load membership: %w", err))
	}
	if m.Status != MemberActive {
		return "", apperr.Forbidden("not a member of this tenant")
	}
	return m.Role, nil
}

// InviteInput is the input to InviteMember (spec §4.4).
type InviteInput struct {
	CurrentTenantID uuid.UUID
	Email           string
	Role            string
}

// InviteMember implements spec §4.4's exact preconditions and upsert.
func (s *Service) InviteMember(ctx context.Context, input InviteInput) (*Member, error) {
	t, err := s.tenantRepo.GetByID(ctx, input.CurrentTenantID)
	if err != nil {
		return nil, apperr.NotFound("tenant not found")
	}

	plan, err := s.planRepo.ByID(ctx, t.PlanID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load plan: %w", err))
	}
	if err := CheckSubscription(t, plan); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.CheckUserQuota(ctx, t.ID, plan); err != nil {
		return nil, err
	}

	targetUser, err := s.userRepo.ByEmail(ctx, input.Email)
	if err != nil {
		if err == identity.ErrNotFound {
			return nil, apperr.Validation("no registered user with this email")
		}
		return nil, apperr.Internal(fmt.Errorf("load invited user: %w", err))
	}

	existing, err := s.memberRepo.ByUserAndTenant(ctx, targetUser.ID, t.ID)
	if err != nil && err != ErrMemberNotFound {
		return nil, apperr.Internal(fmt.Errorf("check membership: %w", err))
	}
	if existing != nil && existing.Status == MemberActive {
		return nil, apperr.Conflict("user is already an active member")
	}

	m := &Member{TenantID: t.ID, UserID: &targetUser.ID, Email: targetUser.Email, Role: input.Role, Status: MemberPending}
	if err := s.memberRepo.Upsert(ctx, m); err != nil {
		return nil, apperr.Internal(fmt.Errorf("upsert membership: %w", err))
	}
	return m, nil
}

// Pending returns a user's pending invites (spec §4.4 listPending).
func (s *Service) Pending(ctx context.Context, userID uuid.UUID, email string) ([]*Member, error) {
	members, err := s.memberRepo.Pending(ctx, userID, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return members, nil
}

// Respond implements spec §4.4 respond: the row must match by userId, or,
// if it had no userId yet, by the user's current email.
func (s *Service) Respond(ctx context.Context, userID uuid.UUID, email string, inviteID uuid.UUID, accept bool) error {
	m, err := s.memberRepo.ByID(ctx, inviteID)
	if err != nil {
		return apperr.NotFound("invite not found")
	}
	matches := (m.UserID != nil && *m.UserID == userID) || (m.UserID == nil && strings.EqualFold(m.Email, email))
	if !matches {
		return apperr.Forbidden("invite does not belong to this user")
	}
	status := MemberDeclined
	if accept {
		status = MemberActive
	}
	if err := s.memberRepo.Respond(ctx, inviteID, userID, status); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
