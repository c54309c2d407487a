package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"todo-backend/infrastructure/di"
	"todo-backend/pkg/auth"
)

func newTokenCommand() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "Issue an HS256 token for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSigningMethod != "HS256" {
				return fmt.Errorf("tokens can only be issued for HS256, got %s", cfg.JWTSigningMethod)
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to issue tokens in production")
			}

			username := args[0]
			if email == "" {
				email = username + "@example.com"
			}

			jwtCfg := di.ProvideJWTConfig(cfg, zap.NewNop())
			generator := auth.NewJWTGenerator(jwtCfg.SecretKey, jwtCfg.Issuer, jwtCfg.Audience, ttl)
			token, err := generator.GenerateToken("local-"+username, email, username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim (default <username>@example.com)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
