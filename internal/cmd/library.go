package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"clip-studio/internal/library"
	"clip-studio/internal/logging"

	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the clip library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all clips, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLibraryList,
}

var libraryRenameCmd = &cobra.Command{
	Use:   "rename <clip-id> <name>",
	Short: "Rename a clip",
	Args:  cobra.ExactArgs(2),
	RunE:  runLibraryRename,
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <clip-id>",
	Short: "Delete a clip and its data",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryDelete,
}

var librarySweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove orphaned clip data and compact the database",
	Args:  cobra.NoArgs,
	RunE:  runLibrarySweep,
}

func init() {
	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryRenameCmd)
	libraryCmd.AddCommand(libraryDeleteCmd)
	libraryCmd.AddCommand(librarySweepCmd)
	rootCmd.AddCommand(libraryCmd)
}

func runLibraryList(cmd *cobra.Command, _ []string) error {
	config := loadConfig()
	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	clips, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list clips: %w", err)
	}

	if len(clips) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Library is empty.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tCREATED")
	for _, c := range clips {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.MimeType, formatBytes(c.Size),
			c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runLibraryRename(cmd *cobra.Command, args []string) error {
	config := loadConfig()
	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	if err := store.Rename(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename clip: %w", err)
	}
	logging.Info("Renamed clip %s to %q", args[0], args[1])
	return nil
}

func runLibraryDelete(cmd *cobra.Command, args []string) error {
	config := loadConfig()
	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}
	logging.Info("Deleted clip %s", args[0])
	return nil
}

func runLibrarySweep(cmd *cobra.Command, _ []string) error {
	config := loadConfig()
	store, err := openLibrary(cmd, config)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer store.Close()

	start := time.Now()
	if err := library.NewSweeper(store, 0).Sweep(cmd.Context()); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	logging.Info("Sweep complete in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// formatBytes formats bytes into a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
