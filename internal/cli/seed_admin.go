package cli

import (
	"fmt"

	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/config"
	"github.com/austrian-business-infrastructure/fo/internal/identity"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/austrian-business-infrastructure/fo/pkg/database"
	"github.com/spf13/cobra"
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Bootstrap the first tenant and ADMIN user from DEFAULT_ADMIN_EMAIL/PASSWORD",
	Long: `seed-admin reads DEFAULT_ADMIN_EMAIL and DEFAULT_ADMIN_PASSWORD (spec §9:
read exactly once, at seed time) and creates a tenant owned by an ADMIN
user with those credentials via the same CreateWithAdmin path the
super-admin "create tenant" operation uses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.DefaultAdminEmail == "" || cfg.DefaultAdminPassword == "" {
			return fmt.Errorf("DEFAULT_ADMIN_EMAIL and DEFAULT_ADMIN_PASSWORD must both be set")
		}

		db, err := database.NewPool(ctx, database.DefaultPostgresConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		identityRepo := identity.NewRepository(db.Pool)
		tenantRepo := tenant.NewRepository(db.Pool)
		planRepo := tenant.NewPlanRepository(db.Pool)
		memberRepo := tenant.NewMemberRepository(db.Pool)
		auditRepo := audit.NewRepository(db.Pool)
		auditLog := audit.NewLogger(auditRepo, db.Pool, nil)

		tenantService := tenant.NewService(db.Pool, tenantRepo, planRepo, memberRepo, identityRepo, auditLog)

		result, err := tenantService.CreateWithAdmin(ctx, &tenant.RegisterInput{
			Name:     "Admin",
			Email:    cfg.DefaultAdminEmail,
			Password: cfg.DefaultAdminPassword,
		})
		if err != nil {
			return fmt.Errorf("create admin tenant: %w", err)
		}

		fmt.Printf("seeded tenant %q (%s) with admin user %s\n", result.Tenant.Name, result.Tenant.ID, result.User.Email)
		return nil
	},
}
