package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/devqa/devqa.go/pkg/auth"
)

func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	var token, secret string
	cmd := &cobra.Command{
		Use:          "whoami",
		Short:        "Print the identity claims carried by an ID token",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var key []byte
			if secret != "" {
				key = []byte(secret)
			}
			c, err := auth.ClaimsFromIDToken(token, key)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, c, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s <%s>\nsubject: %s\n", c.DisplayName(), c.Email, c.Subject)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "ID token (a Bearer prefix is accepted)")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret to verify the token with")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
