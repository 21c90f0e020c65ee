package cmd

import (
	"time"

	"clip-studio/internal/background"
	"clip-studio/internal/library"
	"clip-studio/internal/logging"
	"clip-studio/internal/startup"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "clip-studio",
	Short: "Screen recording studio with non-destructive editing",
	Long: `Clip Studio captures the screen or camera through a compositing
pipeline, keeps recordings in a local library, and exports edited
clips to WebM, MP4, or GIF.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logging.SetLevel(logging.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the environment configuration, terminating the process
// on invalid setup the way the long-running commands expect.
func loadConfig() *startup.Config {
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	return config
}

// setupImageDecoders initializes libvips so background images in formats the
// pure-Go decoders cannot handle (HEIC, AVIF) still decode. Returns the
// release func to defer; init failure degrades to the pure-Go decoders.
func setupImageDecoders() func() {
	if err := background.InitVips(); err != nil {
		logging.Warn("libvips unavailable (%v), HEIC/AVIF backgrounds disabled", err)
		return func() {}
	}
	return background.ShutdownVips
}

// openLibrary opens the clip library and logs the init timing.
func openLibrary(cmd *cobra.Command, config *startup.Config) (*library.Store, error) {
	start := time.Now()
	store, err := library.Open(cmd.Context(), config.LibraryDir)
	if err != nil {
		return nil, err
	}
	startup.LogLibraryInit(time.Since(start))
	return store, nil
}
