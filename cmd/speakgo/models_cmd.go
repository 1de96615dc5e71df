package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speakgo/internal/models"
)

func (a *app) newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage downloaded models",
	}

	var whisper bool
	var dir string
	download := &cobra.Command{
		Use:   "download",
		Short: "Download the Silero VAD model (and optionally the whisper model)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := &models.Downloader{Dir: dir, Out: cmd.OutOrStdout()}

			want := []models.Model{models.Silero}
			if whisper {
				want = append(want, models.Whisper)
			}
			for i, m := range want {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s\n", i+1, len(want), m.Desc)
				if _, err := d.Download(cmd.Context(), m); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All models downloaded successfully!")
			return nil
		},
	}
	download.Flags().BoolVar(&whisper, "whisper", false, "also download the whisper ggml model for the local backend")
	download.Flags().StringVar(&dir, "dir", "", "models directory (default: config dir/models)")
	cmd.AddCommand(download)
	return cmd
}
