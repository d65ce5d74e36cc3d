package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldops/msp-workflow/internal/auth"
	"github.com/fieldops/msp-workflow/internal/config"
	"github.com/fieldops/msp-workflow/internal/domain"
)

type tokenOptions struct {
	subject     string
	name        string
	subjectType string
	role        string
}

func newTokenCommand() *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for development and testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return issueToken(cmd, cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "", "subject id (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name recorded on timeline entries")
	cmd.Flags().StringVar(&opts.subjectType, "type", string(domain.SubjectTypeStaff), "subject type (USER or STAFF)")
	cmd.Flags().StringVar(&opts.role, "role", string(domain.StaffRoleAgent), "staff role (AGENT, TEAM_LEAD, ADMIN)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func issueToken(cmd *cobra.Command, cfg *config.Config, opts *tokenOptions) error {
	actor := domain.Actor{
		SubjectID: opts.subject,
		Name:      opts.name,
		Subject:   domain.SubjectType(opts.subjectType),
	}
	switch actor.Subject {
	case domain.SubjectTypeStaff:
		role := domain.StaffRole(opts.role)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", opts.role)
		}
		actor.Role = &role
	case domain.SubjectTypeUser:
	default:
		return fmt.Errorf("unknown subject type %q", opts.subjectType)
	}

	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).GenerateToken(actor)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
