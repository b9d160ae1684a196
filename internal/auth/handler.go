package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/email"
	"github.com/austrian-business-infrastructure/fo/internal/identity"
	"github.com/austrian-business-infrastructure/fo/internal/otp"
	"github.com/austrian-business-infrastructure/fo/internal/session"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/austrian-business-infrastructure/fo/pkg/crypto"
	"github.com/google/uuid"
)

// Handler serves the identity & session operations of spec §4.3.
type Handler struct {
	tenantService *tenant.Service
	userRepo      *identity.Repository
	sessionRepo   *session.Repository
	otpRepo       *otp.Repository
	jwtManager    *JWTManager
	rateLimiter   *RateLimiter
	auditLog      *audit.Logger
	mailer        email.Service
	logger        *slog.Logger
	cookieConfig  *CookieConfig
	frontURL      string
}

func NewHandler(
	tenantService *tenant.Service,
	userRepo *identity.Repository,
	sessionRepo *session.Repository,
	otpRepo *otp.Repository,
	jwtManager *JWTManager,
	rateLimiter *RateLimiter,
	auditLog *audit.Logger,
	mailer email.Service,
	logger *slog.Logger,
	frontURL string,
) *Handler {
	return &Handler{
		tenantService: tenantService,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		otpRepo:       otpRepo,
		jwtManager:    jwtManager,
		rateLimiter:   rateLimiter,
		auditLog:      auditLog,
		mailer:        mailer,
		logger:        logger,
		cookieConfig:  DefaultCookieConfig(),
		frontURL:      frontURL,
	}
}

func (h *Handler) RegisterRoutes(router *api.Router, requireAuth func(http.Handler) http.Handler) {
	router.HandleFunc("POST /api/v1/auth/register", h.Register)
	router.HandleFunc("POST /api/v1/auth/login", h.Login)
	router.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	router.Handle("POST /api/v1/auth/logout", requireAuth(http.HandlerFunc(h.Logout)))
	router.Handle("POST /api/v1/auth/switch-tenant", requireAuth(http.HandlerFunc(h.SwitchTenant)))
	router.HandleFunc("POST /api/v1/auth/forgot-password", h.ForgotPassword)
	router.HandleFunc("POST /api/v1/auth/reset-password", h.ResetPassword)
}

type UserDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
}

func toUserDTO(u *identity.User) *UserDTO {
	return &UserDTO{ID: u.ID.String(), Name: u.Name, Email: u.Email, TenantID: u.TenantID.String(), Role: u.Role}
}

type credentialsResponse struct {
	User        *UserDTO `json:"user"`
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType"`
	ExpiresIn   int      `json:"expiresIn"`
}

// issue mints access+refresh credentials for (userID, tenantID, role),
// persists a Session for the refresh credential, and writes the refresh
// credential as an httpOnly cookie (spec §4.3: "Both are stateless bearer
// tokens; the refresh credential is additionally recorded as
// Session.refreshTokenHash").
func (h *Handler) issue(ctx context.Context, w http.ResponseWriter, userID, tenantID, role, ip, userAgent string) (string, int, error) {
	access, accessExpiry, err := h.jwtManager.GenerateAccessToken(&UserInfo{UserID: userID, TenantID: tenantID, Role: role})
	if err != nil {
		return "", 0, apperr.Internal(err)
	}
	refresh, refreshExpiry, err := h.jwtManager.GenerateRefreshToken(userID, tenantID)
	if err != nil {
		return "", 0, apperr.Internal(err)
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", 0, apperr.Internal(err)
	}
	if _, err := h.sessionRepo.Create(ctx, nil, uid, refresh, userAgent, ip, refreshExpiry); err != nil {
		return "", 0, apperr.Internal(err)
	}

	SetRefreshTokenCookie(w, refresh, refreshExpiry, h.cookieConfig)
	return access, int(time.Until(accessExpiry).Seconds()), nil
}

// RegisterRequest is the input to Register (spec §4.3).
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	CPF      *string `json:"cpf,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// Register handles POST /api/v1/auth/register (spec §4.3 Register).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		apperr.Write(w, apperr.Validation("name, email and password are required"))
		return
	}

	ip := clientIP(r)
	ua := r.UserAgent()
	result, err := h.tenantService.Register(r.Context(), &tenant.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, CPF: req.CPF, Phone: req.Phone,
	}, &ip, &ua)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	access, expiresIn, err := h.issue(r.Context(), w, result.User.ID.String(), result.Tenant.ID.String(), result.User.Role, ip, ua)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	api.JSONResponse(w, http.StatusCreated, credentialsResponse{
		User: toUserDTO(result.User), AccessToken: access, TokenType: "Bearer", ExpiresIn: expiresIn,
	})
}

// LoginRequest is the input to Login (spec §4.3).
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login (spec §4.3 Login).
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := clientIP(r)
	ua := r.UserAgent()

	if h.rateLimiter != nil {
		if err := h.rateLimiter.CheckLogin(ctx, ip); err != nil {
			if errors.Is(err, ErrRateLimited) {
				w.Header().Set("Retry-After", "60")
				apperr.Write(w, apperr.Validation("too many login attempts"))
				return
			}
			h.logger.Error("rate limit check failed, rejecting login", "error", err, "ip", ip)
			apperr.Write(w, apperr.Internal(err))
			return
		}
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		apperr.Write(w, apperr.Validation("email and password are required"))
		return
	}

	u, err := h.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		apperr.Write(w, apperr.InvalidCredentials("invalid email or password"))
		return
	}
	if err := crypto.VerifyPassword(req.Password, u.PasswordHash); err != nil {
		apperr.Write(w, apperr.InvalidCredentials("invalid email or password"))
		return
	}

	role := "ADMIN"
	if u.Role == "SUPER_ADMIN" {
		role = "SUPER_ADMIN"
	}

	access, expiresIn, err := h.issue(ctx, w, u.ID.String(), u.TenantID.String(), role, ip, ua)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	if err := h.auditLog.LogStandalone(ctx, audit.Event{
		TenantID: u.TenantID, ActorKind: audit.ActorUser, ActorID: &u.ID,
		EntityType: audit.EntityUser, EntityID: u.ID, Action: audit.ActionLoginSuccess,
		IP: &ip, UserAgent: &ua,
	}); err != nil {
		h.logger.Error("audit login success failed", "error", err)
	}

	api.JSONResponse(w, http.StatusOK, credentialsResponse{
		User: toUserDTO(u), AccessToken: access, TokenType: "Bearer", ExpiresIn: expiresIn,
	})
}

// RefreshResponse is the output of Refresh (spec §4.3).
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Refresh handles POST /api/v1/auth/refresh (spec §4.3 Refresh).
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, err := GetRefreshTokenFromCookie(r)
	if err != nil || raw == "" {
		apperr.Write(w, apperr.Unauthenticated("no refresh credential"))
		return
	}

	claims, err := h.jwtManager.ValidateRefreshToken(raw)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid or expired refresh credential"))
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid refresh credential"))
		return
	}

	sess, err := h.sessionRepo.FindByRawToken(ctx, userID, raw)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("session invalid"))
		return
	}
	if err := h.sessionRepo.Delete(ctx, nil, sess.ID); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}

	u, err := h.userRepo.ByID(ctx, userID)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("user not found"))
		return
	}

	role, err := h.tenantService.SwitchTenant(ctx, u, uuid.MustParse(claims.TenantID))
	if err != nil {
		apperr.Write(w, err)
		return
	}

	access, expiresIn, err := h.issue(ctx, w, claims.UserID, claims.TenantID, role, clientIP(r), r.UserAgent())
	if err != nil {
		apperr.Write(w, err)
		return
	}

	api.JSONResponse(w, http.StatusOK, RefreshResponse{AccessToken: access, TokenType: "Bearer", ExpiresIn: expiresIn})
}

// Logout handles POST /api/v1/auth/logout (spec §4.3 Logout: idempotent).
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userIDStr := api.GetUserID(ctx)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}

	if raw, err := GetRefreshTokenFromCookie(r); err == nil && raw != "" {
		if sess, err := h.sessionRepo.FindByRawToken(ctx, userID, raw); err == nil {
			_ = h.sessionRepo.Delete(ctx, nil, sess.ID)
		}
	}
	ClearRefreshTokenCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// SwitchTenantRequest is the input to SwitchTenant (spec §4.3).
type SwitchTenantRequest struct {
	TargetTenantID string `json:"targetTenantId"`
}

// SwitchTenant handles POST /api/v1/auth/switch-tenant (spec §4.3 Switch
// tenant): mints new credentials carrying the new tenantId and role,
// persisting an additive Session (the prior refresh stays valid).
func (h *Handler) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SwitchTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	targetTenantID, err := uuid.Parse(req.TargetTenantID)
	if err != nil {
		apperr.Write(w, apperr.Validation("invalid targetTenantId"))
		return
	}

	userID, err := uuid.Parse(api.GetUserID(ctx))
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("invalid principal"))
		return
	}
	u, err := h.userRepo.ByID(ctx, userID)
	if err != nil {
		apperr.Write(w, apperr.Unauthenticated("user not found"))
		return
	}

	role, err := h.tenantService.SwitchTenant(ctx, u, targetTenantID)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	access, expiresIn, err := h.issue(ctx, w, u.ID.String(), targetTenantID.String(), role, clientIP(r), r.UserAgent())
	if err != nil {
		apperr.Write(w, err)
		return
	}
	api.JSONResponse(w, http.StatusOK, RefreshResponse{AccessToken: access, TokenType: "Bearer", ExpiresIn: expiresIn})
}

// ForgotPasswordRequest is the input to requestPasswordReset (spec §4.3).
type ForgotPasswordRequest struct {
	Email   string `json:"email"`
	Channel string `json:"channel"`
}

// ForgotPassword handles POST /api/v1/auth/forgot-password. Responds 202
// whether or not the email belongs to a user, to avoid user enumeration;
// responds 400 for an unreadable body or for the WHATSAPP channel when the
// user has no phone on file.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}

	u, err := h.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	channel := otp.Channel(req.Channel)
	if channel == "" {
		channel = otp.ChannelEmail
	}
	recipient := u.Email
	if channel == otp.ChannelWhatsapp {
		if u.Phone == nil {
			apperr.Write(w, apperr.Validation("user has no phone on file"))
			return
		}
		recipient = *u.Phone
	}

	raw, _, err := h.otpRepo.Mint(ctx, recipient, channel, otp.ContextPasswordReset, 15*time.Minute)
	if err != nil {
		h.logger.Error("mint password reset otp failed", "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if h.mailer != nil {
		if err := h.mailer.SendPasswordReset(ctx, u.Email, raw, h.frontURL); err != nil {
			h.logger.Error("send password reset email failed", "error", err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// ResetPasswordRequest is the input to resetPassword (spec §4.3).
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword handles POST /api/v1/auth/reset-password (spec §4.3
// resetPassword): finds the most recent PASSWORD_RESET OTP whose recipient
// matches the user's email or phone, verifies it, and commits the new
// password alongside the OTP row's deletion in one transaction.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"))
		return
	}
	if len(req.NewPassword) < 6 {
		apperr.Write(w, apperr.Validation("password must be at least 6 characters"))
		return
	}

	u, err := h.userRepo.ByEmail(ctx, req.Email)
	if err != nil {
		apperr.Write(w, apperr.Expired("invalid or expired code"))
		return
	}

	recipients := []string{u.Email}
	if u.Phone != nil {
		recipients = append(recipients, *u.Phone)
	}
	code, err := h.otpRepo.MostRecentForRecipients(ctx, otp.ContextPasswordReset, recipients)
	if err != nil {
		apperr.Write(w, apperr.Expired("invalid or expired code"))
		return
	}
	if err := otp.Verify(req.OTP, code); err != nil {
		_ = h.otpRepo.IncrementAttempts(ctx, code.ID)
		apperr.Write(w, apperr.Expired("invalid or expired code"))
		return
	}

	passwordHash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}

	tx, err := h.tenantService.BeginTx(ctx)
	if err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	defer tx.Rollback(ctx)

	if err := h.userRepo.SetPassword(ctx, tx, u.ID, passwordHash); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	if err := h.otpRepo.Delete(ctx, tx, code.ID); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		apperr.Write(w, apperr.Internal(err))
		return
	}

	_ = h.sessionRepo.DeleteAllForUser(ctx, u.ID)
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
