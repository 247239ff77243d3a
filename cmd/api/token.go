package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	transporthttp "github.com/achingachris/mya-server/internal/transport/http"
)

func (c *cli) adminTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue a bearer token for the /admin endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWTSecret == "" {
				return errors.New("jwt secret is required (JWT_SECRET)")
			}
			token, err := transporthttp.IssueAdminToken(c.cfg.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
