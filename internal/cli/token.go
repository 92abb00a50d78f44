package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewTokenCmd mints a bearer token signed with the configured secret. It is
// meant for local development and smoke tests.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		identity domain.Identity
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret (or JWT_SECRET) must be set")
			}
			if identity.UserID == "" {
				return errors.New("--user is required")
			}
			tok, err := transport.NewAuthenticator(cfg.Auth.JWTSecret).SignToken(identity, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.UserID, "user", "", "user id to embed")
	cmd.Flags().StringVar(&identity.Username, "name", "", "display name to embed")
	cmd.Flags().BoolVar(&identity.IsAdmin, "admin", false, "grant admin read access")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
