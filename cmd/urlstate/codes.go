package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstate/internal/errors"
)

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes [code]",
		Short: "List error codes or explain one",
		Long: `Without arguments, list every error code with its category and message.
With a code, print its full explanation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				code := strings.ToUpper(args[0])
				tmpl, ok := errors.GetTemplate(code)
				if !ok {
					return fmt.Errorf("unknown error code %q", args[0])
				}
				fmt.Fprintf(out, "%s: %s\n", code, tmpl.Message)
				fmt.Fprintf(out, "Category: %s\n", tmpl.Category)
				if tmpl.Detail != "" {
					fmt.Fprintf(out, "\n%s\n", tmpl.Detail)
				}
				return nil
			}
			for _, code := range errors.GetAllCodes() {
				tmpl, _ := errors.GetTemplate(code)
				fmt.Fprintf(out, "%s  %-8s  %s\n", code, tmpl.Category, tmpl.Message)
			}
			return nil
		},
	}
}
