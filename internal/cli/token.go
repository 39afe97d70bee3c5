package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/billtx/internal/auth"
	"github.com/mmynk/billtx/internal/config"
)

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <operator>",
		Short: "Issue a bearer token",
		Long:  "Issue a bearer token for an operator, signed with BILLTX_JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}

	cmd.Flags().Duration("ttl", 0, "Token lifetime (overrides BILLTX_TOKEN_TTL)")

	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled() {
		return fmt.Errorf("BILLTX_JWT_SECRET is not set")
	}

	ttl := cfg.TokenTTL
	if flagTTL, _ := cmd.Flags().GetDuration("ttl"); flagTTL > 0 {
		ttl = flagTTL
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, ttl).Generate(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
