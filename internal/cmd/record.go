package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clip-studio/internal/capture"
	"clip-studio/internal/logging"
	"clip-studio/internal/progress"
	"clip-studio/internal/startup"

	"github.com/spf13/cobra"
)

var recordFlags struct {
	name            string
	duration        time.Duration
	audio           bool
	camera          bool
	pip             bool
	mic             bool
	backgroundColor string
	backgroundImage string
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture a recording into the library",
	Long: `Record the screen (or camera) until interrupted or until --duration
elapses, then save the assembled recording into the local library.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordFlags.name, "name", "n", "", "clip name (defaults to a timestamp)")
	recordCmd.Flags().DurationVarP(&recordFlags.duration, "duration", "d", 0, "stop automatically after this long (0 = until Ctrl+C)")
	recordCmd.Flags().BoolVar(&recordFlags.audio, "audio", false, "capture an audio track")
	recordCmd.Flags().BoolVar(&recordFlags.camera, "camera", false, "record the camera instead of the screen")
	recordCmd.Flags().BoolVar(&recordFlags.pip, "pip", false, "overlay the camera as picture-in-picture")
	recordCmd.Flags().BoolVar(&recordFlags.mic, "mic", false, "mix the microphone into the audio track")
	recordCmd.Flags().StringVar(&recordFlags.backgroundColor, "background-color", "", "composite over a flat color (#rrggbb)")
	recordCmd.Flags().StringVar(&recordFlags.backgroundImage, "background-image", "", "composite over a remote image URL")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, _ []string) error {
	config := loadConfig()

	startup.LogCaptureInit()
	if err := startup.CheckFFmpeg(); err != nil {
		return fmt.Errorf("ffmpeg is required for recording: %w", err)
	}

	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	if recordFlags.backgroundImage != "" {
		defer setupImageDecoders()()
	}

	controller := capture.NewController(capture.Config{
		Width:       config.CaptureWidth,
		Height:      config.CaptureHeight,
		FrameRate:   config.FrameRate,
		SurfaceW:    config.SurfaceWidth,
		SurfaceH:    config.SurfaceHeight,
		RefreshRate: config.RefreshRate,
	})

	opts := capture.Options{
		Audio:              recordFlags.audio,
		Camera:             recordFlags.camera,
		PIP:                recordFlags.pip,
		AudioMixing:        recordFlags.mic,
		BackgroundColor:    recordFlags.backgroundColor,
		BackgroundImageURL: recordFlags.backgroundImage,
	}

	if err := controller.Start(cmd.Context(), opts); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	waitForStop(recordFlags.duration)

	recording, err := controller.Stop()
	if err != nil {
		if errors.Is(err, progress.ErrNoDataCaptured) {
			return errors.New("nothing was recorded")
		}
		return fmt.Errorf("failed to finish recording: %w", err)
	}

	clip, err := store.Save(cmd.Context(), recordFlags.name, recording.MimeType, recording.Data)
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}

	logging.Info("Saved clip %s (%q, %d bytes)", clip.ID, clip.Name, clip.Size)
	fmt.Fprintln(cmd.OutOrStdout(), clip.ID)
	return nil
}

// waitForStop blocks until the duration elapses or the process receives an
// interrupt, whichever comes first.
func waitForStop(duration time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
		case sig := <-sigChan:
			logging.Info("Received %s, stopping recording", sig)
		}
		return
	}

	logging.Info("Recording. Press Ctrl+C to stop.")
	sig := <-sigChan
	logging.Info("Received %s, stopping recording", sig)
}
