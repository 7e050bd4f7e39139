package main

import (
	"fmt"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/services"

	"github.com/spf13/cobra"
)

var (
	tokenActor     string
	tokenTier      string
	tokenTrialDays int
)

// tokenCmd mints a bearer token signed with the configured secret. Accounts
// live outside this service; the command exists for operators and local testing.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for an actor and tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		tier, err := domain.ParseTier(tokenTier)
		if err != nil {
			return err
		}

		var trialEndsAt time.Time
		if tier == domain.TierTrial && tokenTrialDays > 0 {
			trialEndsAt = time.Now().AddDate(0, 0, tokenTrialDays)
		}

		auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
		token, err := auth.GenerateToken(domain.ActorID(tokenActor), tier, trialEndsAt)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenActor, "actor", "", "actor (user) id carried by the token")
	tokenCmd.Flags().StringVar(&tokenTier, "tier", string(domain.TierFree), "free, trial or premium")
	tokenCmd.Flags().IntVar(&tokenTrialDays, "trial-days", 7, "trial length in days when --tier=trial")
	_ = tokenCmd.MarkFlagRequired("actor")
}
