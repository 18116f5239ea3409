package files

import (
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/library"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	addCmd = &cobra.Command{
		Use:   "add [path...]",
		Short: "Adds .mp3 and .wav files to the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			handles, err := util.Retry(ctx, session.Config.Retries, func() ([]library.FileHandle, error) {
				return lib.Add(ctx, args...)
			})
			if err != nil {
				return err
			}
			for _, h := range handles {
				fmt.Printf("added %s\n", h)
			}
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all files of the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			handles, err := util.Retry(ctx, session.Config.Retries, func() ([]library.FileHandle, error) {
				return lib.List(ctx)
			})
			if err != nil {
				return err
			}
			if len(handles) == 0 {
				fmt.Println("the library is empty, add files with 'tkv files add'")
				return nil
			}

			name := color.New(color.FgCyan, color.Bold)
			faint := color.New(color.Faint)
			missing := color.New(color.FgHiRed)
			for _, h := range handles {
				line := fmt.Sprintf("%s %9s  %-10s", name.Sprintf("%-32s", h.Name), formatSize(h.Size), h.MimeType)
				if _, err := os.Stat(h.Path); err != nil {
					fmt.Printf("%s %s\n", line, missing.Sprint("missing: "+h.Path))
					continue
				}
				fmt.Printf("%s %s\n", line, faint.Sprintf("%s (added %s)", h.Path, h.AddedAt.Format(time.DateOnly)))
			}
			return nil
		},
	}
	rmCmd = &cobra.Command{
		Use:   "rm [name]",
		Short: "Removes a file from the library (the file itself is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := session.Context()
			defer cancel()

			if _, err := util.Retry(ctx, session.Config.Retries, func() (struct{}, error) {
				return struct{}{}, lib.Remove(ctx, args[0])
			}); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
)

// formatSize formats a byte count with a binary unit
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
