package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/mcp-gate/pkce"
)

// newPKCECmd prints a verifier and its S256 challenge for walking through
// the flow by hand. With --verify it derives the challenge for an existing
// verifier instead of generating one.
func newPKCECmd() *cobra.Command {
	var verify string

	cmd := &cobra.Command{
		Use:   "pkce",
		Short: "Generate a PKCE code verifier and S256 challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verifier := verify
			if verifier == "" {
				verifier, _ = pkce.NewVerifier()
			}
			if err := pkce.ValidateVerifier(verifier); err != nil {
				return fmt.Errorf("invalid code verifier: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "code_verifier=%s\n", verifier)
			fmt.Fprintf(cmd.OutOrStdout(), "code_challenge=%s\n", pkce.DeriveChallenge(verifier))
			fmt.Fprintf(cmd.OutOrStdout(), "code_challenge_method=%s\n", pkce.MethodS256)
			return nil
		},
	}
	cmd.Flags().StringVar(&verify, "verify", "", "check an existing verifier and print its challenge")
	return cmd
}
