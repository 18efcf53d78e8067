package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstate/internal/errors"
	"github.com/vango-dev/urlstate/pkg/encoding"
	"github.com/vango-dev/urlstate/pkg/querystring"
	"github.com/vango-dev/urlstate/pkg/server"
)

// readArg returns args[0], or stdin without its final newline when the
// argument is "-" or missing.
func readArg(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, errors.New("E100").Wrap(err)
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	return bytes.TrimSuffix(data, []byte("\r")), nil
}

func encodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [json|-]",
		Short: "Encode a JSON object as a query string",
		Example: `  urlstate encode '{"foo":"bar","fizz":[["buzz"]]}'
  # foo=bar&fizz[0][0]=buzz`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			m, err := server.ParseObject(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), querystring.Encode(m))
			return nil
		},
	}
}

func decodeCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "decode <query>",
		Short: "Decode a query string into a JSON object",
		Example: `  urlstate decode 'foo=bar&fizz[0][0]=buzz'
  # {"foo":"bar","fizz":[["buzz"]]}`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			m := querystring.Decode(strings.TrimSpace(string(data)))
			out, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, out, "", "  "); err != nil {
					return err
				}
				out = buf.Bytes()
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "Indent the JSON output")

	return cmd
}

func base64Cmd() *cobra.Command {
	var (
		urlSafe bool
		decode  bool
	)

	cmd := &cobra.Command{
		Use:   "base64 <value>",
		Short: "Apply the base64 field encodings",
		Long: `Encode a value the way a base64 field stores it, or decode a stored
value back. --url selects the URL-safe alphabet without padding.
Decoding accepts either alphabet, padded or not.`,
		Example: `  urlstate base64 --url '<<???>>'
  # PDw_Pz8-Pg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			enc := encoding.Base64
			if urlSafe {
				enc = encoding.Base64URL
			}
			out := cmd.OutOrStdout()
			if !decode {
				fmt.Fprintln(out, enc.To(string(data)))
				return nil
			}
			value, err := enc.From(strings.TrimSpace(string(data)))
			if err != nil {
				return errors.New("E102").Wrap(err)
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&urlSafe, "url", "u", false, "Use the URL-safe alphabet")
	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "Decode instead of encode")

	return cmd
}
