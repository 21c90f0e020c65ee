package cmd

import (
	"fmt"

	"clip-studio/internal/cloud"
	"clip-studio/internal/logging"

	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <clip-id>",
	Short: "Upload a clip to the sharing service",
	Long: `Authenticate against the configured sharing service (SHARE_URL) and
upload the clip. Prints the public URL on success.`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

func init() {
	rootCmd.AddCommand(shareCmd)
}

func runShare(cmd *cobra.Command, args []string) error {
	config := loadConfig()
	if !config.SharingEnabled {
		return fmt.Errorf("sharing is disabled; set SHARE_URL")
	}

	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	clip, data, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	client := cloud.New(config.ShareURL)

	token, err := client.Authenticate(cmd.Context())
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	url, err := client.Upload(cmd.Context(), data, clip.Name, clip.MimeType, token, func(fraction float64) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\rUploading: %3.0f%%", fraction*100)
	})
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	logging.Info("Shared clip %s (%d bytes)", clip.ID, clip.Size)
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
