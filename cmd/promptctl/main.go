package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pipprompter/server/pkg/omitnilpointers"
	"github.com/spf13/cobra"
)

type options struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "promptctl",
		Short:        "Remote control for a running prompter",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  promptctl state
  promptctl set --text "Hello" --speed 5 --scale 4x3
  promptctl scroll on
  promptctl qr remote.png
`),
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("PIP_SERVER_URL", "http://localhost:8080"), "Control server base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("PIP_TOKEN"), "Control token")

	cmd.AddCommand(
		newStateCmd(opts),
		newSetCmd(opts),
		newScrollCmd(opts),
		newQRCmd(opts),
	)

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current presentation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newClient(opts.server, opts.token).State(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, s)
		},
	}
}

func newSetCmd(opts *options) *cobra.Command {
	var (
		text, color, background, scale string
		speed, fontSize, progress      float64
		autoScroll                     bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change presentation fields; flags left out keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			changed := func(name string) bool { return flags.Changed(name) }

			fields := map[string]any{
				"text":              pick(changed("text"), &text),
				"textColorHex":      pick(changed("color"), &color),
				"textBackgroundHex": pick(changed("background"), &background),
				"scale":             pick(changed("scale"), &scale),
				"speed":             pick(changed("speed"), &speed),
				"fontSize":          pick(changed("font-size"), &fontSize),
				"scrollProgress":    pick(changed("progress"), &progress),
				"autoScroll":        pick(changed("auto-scroll"), &autoScroll),
			}
			return update(cmd, opts, fields)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to scroll")
	cmd.Flags().StringVar(&color, "color", "", "Text color as hex")
	cmd.Flags().StringVar(&background, "background", "", "Background color as hex")
	cmd.Flags().StringVar(&scale, "scale", "", "Window scale: 1x1, 2x1, 3x1, 3x2 or 4x3")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Scroll speed (1-100)")
	cmd.Flags().Float64Var(&fontSize, "font-size", 0, "Font size (10-100)")
	cmd.Flags().Float64Var(&progress, "progress", 0, "Scroll position in percent")
	cmd.Flags().BoolVar(&autoScroll, "auto-scroll", false, "Enable auto-scroll")

	return cmd
}

// pick returns v when the flag was set and a typed nil otherwise.
func pick[T any](set bool, v *T) *T {
	if !set {
		return nil
	}
	return v
}

func newScrollCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "scroll on|off",
		Short:     "Start or stop auto-scroll",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return update(cmd, opts, map[string]any{"autoScroll": args[0] == "on"})
		},
	}
}

func newQRCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "qr <file>",
		Short: "Save a QR code of the control page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := newClient(opts.server, opts.token).QRCode(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], png, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", args[0], len(png))
			return nil
		},
	}
}

func update(cmd *cobra.Command, opts *options, fields map[string]any) error {
	patch, err := omitnilpointers.MarshalPatch(fields)
	if err != nil {
		return err
	}

	res, err := newClient(opts.server, opts.token).Update(cmd.Context(), patch)
	if err != nil {
		return err
	}
	for _, fe := range res.Rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "ignored %s: %s\n", fe.Field, fe.Message)
	}

	return writeJSON(cmd, res.State)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
