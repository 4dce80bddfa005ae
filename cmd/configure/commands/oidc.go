package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/taskpulse/internal/config"
	"github.com/benvon/taskpulse/internal/services/oidc"
)

// NewOIDCCmd groups checks of the identity provider configuration
func NewOIDCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oidc",
		Short: "Inspect OIDC configuration",
	}
	cmd.AddCommand(newOIDCCheckCmd())
	return cmd
}

func newOIDCCheckCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the configured JWKS and list its signing keys",
		Long:  "Verify that OIDC_JWKS_URL is reachable and serves a usable key set before enabling authentication.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if !cfg.AuthEnabled() {
				fmt.Fprintln(out, "OIDC is not configured; the API serves a single local user.")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			keys, err := oidc.NewJWKSManager(nil).GetJWKS(ctx, cfg.OIDCJWKSURL)
			if err != nil {
				return fmt.Errorf("JWKS check failed: %w", err)
			}
			if keys.Len() == 0 {
				return fmt.Errorf("JWKS at %s contains no keys", cfg.OIDCJWKSURL)
			}

			fmt.Fprintf(out, "Issuer: %s\n", cfg.OIDCIssuer)
			fmt.Fprintf(out, "Audience: %s\n", cfg.OIDCAudience)
			fmt.Fprintf(out, "JWKS: %s (%d keys)\n", cfg.OIDCJWKSURL, keys.Len())
			for i := 0; i < keys.Len(); i++ {
				key, ok := keys.Key(i)
				if !ok {
					continue
				}
				alg := "-"
				if a := key.Algorithm(); a != nil {
					alg = a.String()
				}
				fmt.Fprintf(out, "  kid=%s kty=%s alg=%s\n", key.KeyID(), key.KeyType(), alg)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for fetching the JWKS")
	return cmd
}
