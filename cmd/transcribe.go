package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"video-to-text/pkg/config"
	"video-to-text/pkg/models"
	"video-to-text/pkg/transcribe"
)

func newTranscribeCommand() *cobra.Command {
	var (
		baseURL string
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <url>",
		Short: "Send one URL to the transcription service and print the text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if strict && !models.IsYouTubeURL(url) {
				return models.ErrInvalidYouTubeURL
			}

			cfg := config.Load()
			if baseURL != "" {
				cfg.Transcription.BaseURL = baseURL
			}

			controller := transcribe.NewController(transcribe.NewClient(cfg.Transcription))
			state := controller.Transcribe(context.Background(), url)
			if state.Error != nil {
				out, _ := json.Marshal(state.Error)
				return fmt.Errorf("transcription failed (%s): %s", state.Error.Kind, out)
			}

			fmt.Fprintln(os.Stdout, state.Result.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "transcription service address (overrides TRANSCRIBE_BASE_URL)")
	cmd.Flags().BoolVar(&strict, "youtube", false, "reject URLs that are not YouTube links")
	return cmd
}
