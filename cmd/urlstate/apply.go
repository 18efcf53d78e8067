package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstate/internal/errors"
	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/urlparam"
)

func applyCmd() *cobra.Command {
	var (
		push       bool
		alwaysShow bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "apply <url> <path=value>...",
		Short: "Set fields on a URL through the binding engine",
		Long: `Bind a string field per assignment to an in-memory history at <url>,
set each value, and print the resulting URL.

Paths use dots for nesting (pager.page=2 becomes pager[page]=2). An empty
value resets the field, which removes it from the query unless
--always-show is given.`,
		Example: `  urlstate apply 'https://example.com/search?q=go' q=gophers pager.page=2
  # https://example.com/search?q=gophers&pager[page]=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type assignment struct{ path, value string }
			var assignments []assignment
			for _, arg := range args[1:] {
				path, value, ok := strings.Cut(arg, "=")
				if !ok || path == "" {
					return errors.Newf(errors.CategoryInput, "assignment %q is not path=value", arg)
				}
				assignments = append(assignments, assignment{path, value})
			}

			mem := history.NewMemory(args[0])
			logger := newLogger(cmd.ErrOrStderr(), "warn", "text")
			ctx := urlparam.New(mem, urlparam.WithLogger(logger))
			defer ctx.Close()

			for _, a := range assignments {
				q := urlparam.NewQuery("")
				if push {
					q.UsePush()
				}
				if alwaysShow {
					q.AlwaysShow()
				}
				q.Bind(ctx, a.path).Set(a.value)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, mem.Location().String())
			if verbose {
				fmt.Fprintf(out, "history: %d entries, at %d\n", mem.Len(), mem.Index())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "Push a history entry per change")
	cmd.Flags().BoolVar(&alwaysShow, "always-show", false, "Keep empty values in the URL")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print history length and position")

	return cmd
}
