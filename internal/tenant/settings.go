package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSettingsNotFound = errors.New("tenant settings not found")

// ZAPISettings holds per-tenant WhatsApp credentials (spec §3 TenantSettings).
type ZAPISettings struct {
	InstanceID  string
	Token       string
	ClientToken string
	Active      bool
}

// ResendSettings holds per-tenant transactional-email credentials.
type ResendSettings struct {
	APIKey string
	Active bool
}

// Settings is per-tenant notification & branding configuration (spec §3
// TenantSettings).
type Settings struct {
	TenantID           uuid.UUID
	AppName            string
	PrimaryColor       string
	LogoURL            *string
	ZAPI               *ZAPISettings
	Resend             *ResendSettings
	FinalEmailTemplate *string
}

// SettingsRepository persists TenantSettings rows.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) ByTenantID(ctx context.Context, tenantID uuid.UUID) (*Settings, error) {
	const q = `SELECT tenant_id, app_name, primary_color, logo_url,
	           zapi_instance_id, zapi_token, zapi_client_token, zapi_active,
	           resend_api_key, resend_active, final_email_template
	           FROM tenant_settings WHERE tenant_id = $1`
	s := &Settings{ZAPI: &ZAPISettings{}, Resend: &ResendSettings{}}
	err := r.pool.QueryRow(ctx, q, tenantID).Scan(
		&s.TenantID, &s.AppName, &s.PrimaryColor, &s.LogoURL,
		&s.ZAPI.InstanceID, &s.ZAPI.Token, &s.ZAPI.ClientToken, &s.ZAPI.Active,
		&s.Resend.APIKey, &s.Resend.Active, &s.FinalEmailTemplate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *Settings) error {
	const q = `INSERT INTO tenant_settings (tenant_id, app_name, primary_color, logo_url,
	           zapi_instance_id, zapi_token, zapi_client_token, zapi_active,
	           resend_api_key, resend_active, final_email_template)
	           VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	           ON CONFLICT (tenant_id) DO UPDATE SET
	             app_name = EXCLUDED.app_name, primary_color = EXCLUDED.primary_color, logo_url = EXCLUDED.logo_url,
	             zapi_instance_id = EXCLUDED.zapi_instance_id, zapi_token = EXCLUDED.zapi_token,
	             zapi_client_token = EXCLUDED.zapi_client_token, zapi_active = EXCLUDED.zapi_active,
	             resend_api_key = EXCLUDED.resend_api_key, resend_active = EXCLUDED.resend_active,
	             final_email_template = EXCLUDED.final_email_template`
	_, err := r.pool.Exec(ctx, q, s.TenantID, s.AppName, s.PrimaryColor, s.LogoURL,
		s.ZAPI.InstanceID, s.ZAPI.Token, s.ZAPI.ClientToken, s.ZAPI.Active,
		s.Resend.APIKey, s.Resend.Active, s.FinalEmailTemplate)
	return err
}
