package main

import (
	stderrors "errors"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstate/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if !useColor(os.Stderr) {
		errors.DisableColors()
	}
	if err := newRootCmd().Execute(); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			errors.Print(os.Stderr, e)
		} else {
			errors.Print(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// useColor reports whether f is a terminal and NO_COLOR is unset.
func useColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "urlstate",
		Short: "Query-string state tools",
		Long: `urlstate maps nested data to URL query strings and back.

  encode   JSON object -> query string
  decode   query string -> JSON object
  base64   standard and URL-safe base64 used by field encodings
  apply    set fields on a URL through the binding engine
  serve    run the WebSocket playground server
  codes    list error codes and explain one`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		encodeCmd(),
		decodeCmd(),
		base64Cmd(),
		applyCmd(),
		serveCmd(),
		codesCmd(),
		versionCmd(),
	)
	return rootCmd
}
