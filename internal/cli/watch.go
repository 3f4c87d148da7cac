package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/chatline/internal/tracing"
	"github.com/harun/chatline/pkg/session"
	"github.com/harun/chatline/pkg/watch"
	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Send the input file every time it is saved",
	Long: `Watch the input file and send its contents as the next message of the
active chat each time the file is saved. Runs until interrupted. A failed
exchange is logged and watching continues.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultStabilityThreshold, "how long the file must stay unchanged before it is sent")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchDebounce <= 0 {
		return fmt.Errorf("invalid --debounce: must be positive, got %s", watchDebounce)
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	mgr, err := a.Manager(out)
	if err != nil {
		return err
	}

	w, err := watch.NewFileWatcher(watch.FileWatcherConfig{
		Path:               a.cfg.Paths.InputFile,
		StabilityThreshold: watchDebounce,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", a.cfg.Paths.InputFile)

	return w.Run(cmd.Context(), func(ctx context.Context) error {
		_, err := mgr.Run(tracing.NewRunContext(ctx), session.Request{})
		return err
	})
}
