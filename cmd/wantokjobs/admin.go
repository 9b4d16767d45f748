package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nwakan/wantok-jobs-sub002/internal/middleware"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

func newResetCreditsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-credits",
		Short: "Run the annual credit reset once",
		Long: `Runs the annual credit reset for every profile not reset in the current year.
Safe to schedule from cron: a second run in the same year changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.ResetAnnualCredits(cmd.Context())
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "year %d: reset %d employers, %d jobseekers\n",
					res.Year, res.Employers, res.Jobseekers)
			}
			return err
		},
	}
}

func newUserCmd(a *app) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var email, role string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user together with the profile of its role",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			u, err := svc.RegisterUser(cmd.Context(), email, model.Role(role))
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", u.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&email, "email", "", "user email")
	addCmd.Flags().StringVar(&role, "role", string(model.RoleEmployer), "jobseeker, employer or admin")
	_ = addCmd.MarkFlagRequired("email")

	userCmd.AddCommand(addCmd)
	return userCmd
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to issue tokens")
			}
			r := model.Role(role)
			if userID <= 0 || !r.Valid() {
				return fmt.Errorf("invalid user %d or role %q", userID, role)
			}

			token, err := middleware.NewAuthMiddleware(a.cfg.JWTSecret).IssueToken(userID, r, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	cmd.Flags().StringVar(&role, "role", string(model.RoleEmployer), "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", middleware.DefaultTokenTTL, "token lifetime")
	return cmd
}
