package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"intramind/internal/auth"
)

var (
	tokenSubject string
	tokenName    string
	tokenGroups  []string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token",
	Long: `Sign a token with the configured auth secret for local testing of
the HTTP API. The token carries the subject, display name and groups.

Examples:
  intramind token --sub ajay@company.com --group RAG-App-Users
  intramind token --sub bob --group Finance --ttl 10m`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "token subject (required)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringSliceVar(&tokenGroups, "group", nil, "group membership (repeatable, default is the required group)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("sub")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	groups := tokenGroups
	if len(groups) == 0 && cfg.Auth.RequiredGroup != "" {
		groups = []string{cfg.Auth.RequiredGroup}
	}

	token, err := auth.MintToken(cfg.Auth, tokenSubject, tokenName, groups, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
