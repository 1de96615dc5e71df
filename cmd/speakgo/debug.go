package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speakgo/internal/hotkey"
	"github.com/chaz8081/speakgo/internal/inject"
)

func (a *app) newDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Manual checks for the hotkey listener and text output",
	}
	cmd.AddCommand(a.newDebugHotkeyCmd(), a.newDebugInjectCmd())
	return cmd
}

// newDebugHotkeyCmd prints hotkey events until interrupted.
func (a *app) newDebugHotkeyCmd() *cobra.Command {
	var mode string
	var keys []string
	cmd := &cobra.Command{
		Use:   "hotkey",
		Short: "Print hotkey events until Ctrl+C",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keys") {
				keys = cfg.Hotkey.Keys
			}
			if !cmd.Flags().Changed("mode") {
				mode = cfg.Hotkey.Mode
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Listening for %s in %q mode...\n", strings.Join(keys, "+"), mode)
			fmt.Fprintln(out, "Press Ctrl+C to exit.")

			listener := hotkey.NewListener(keys, mode, cfg.Hotkey.CancelKeys)
			go func() {
				<-cmd.Context().Done()
				fmt.Fprintln(out, "\nShutting down...")
				listener.Stop()
			}()

			go func() {
				for ev := range listener.Events() {
					fmt.Fprintf(out, ">>> %s\n", ev.Type)
				}
				fmt.Fprintln(out, "Event channel closed.")
			}()

			// Blocks until stopped
			listener.Start()
			fmt.Fprintln(out, "Done.")
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "toggle", "hotkey mode: hold or toggle")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "key combo, e.g. ctrl,shift,r (default: from config)")
	return cmd
}

// newDebugInjectCmd outputs sample text after a countdown.
func (a *app) newDebugInjectCmd() *cobra.Command {
	var method, text string
	var delay int
	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Output test text after a countdown; focus a text editor first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := inject.NewInjector(method)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Will output %q using %q method in %d seconds...\n", text, method, delay)
			fmt.Fprintln(out, "Focus a text editor now!")

			for i := delay; i > 0; i-- {
				fmt.Fprintf(out, "%d...\n", i)
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(time.Second):
				}
			}

			if err := inj.Inject(text); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nDone!")
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "type", "output method: copy, paste or type")
	cmd.Flags().StringVar(&text, "text", "Hello from speakgo!", "text to output")
	cmd.Flags().IntVar(&delay, "delay", 3, "countdown in seconds")
	return cmd
}
