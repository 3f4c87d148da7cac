package cli

import (
	"context"

	"github.com/harun/chatline/internal/tracing"
	"github.com/harun/chatline/pkg/render"
	"github.com/harun/chatline/pkg/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	apiKey   string
	model    string
	stream   bool
	noStream bool
	newChat  bool
	loadFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatline [prompt]",
	Short: "chatline - chat with an AI model from the command line",
	Long: `chatline sends a prompt to a chat completion API and keeps the
conversation in history/, so the next invocation continues where the last
one stopped. The full conversation is rendered to output.md after every turn.

Without a prompt argument the prompt is read from input.txt.`,
	Example: `  chatline --new "who created c++"          # Create new chat
  chatline "who created python"             # Continue active chat or create new
  chatline --load 2026-01-22T010757.json    # Load specific chat history`,
	Args:          cobra.MaximumNArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

// ExecuteContext runs the root command. It is called by main.main(); ctx
// cancels in-flight requests.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chatline/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (overrides API_KEY env var)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model name; overrides config")
	rootCmd.PersistentFlags().BoolVar(&stream, "stream", true, "stream the reply as it is generated; overrides config when set")
	rootCmd.PersistentFlags().BoolVar(&noStream, "no-stream", false, "wait for the whole reply instead of streaming it")
	rootCmd.MarkFlagsMutuallyExclusive("stream", "no-stream")

	// Chat flags
	rootCmd.Flags().BoolVar(&newChat, "new", false, "start a new chat (ignore active chat)")
	rootCmd.Flags().StringVar(&loadFile, "load", "", "load a specific chat history file")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := tracing.NewRunContext(cmd.Context())

	mgr, err := a.Manager(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	var prompt string
	if len(args) > 0 {
		prompt = args[0]
	}

	result, err := mgr.Run(ctx, session.Request{
		Prompt: prompt,
		New:    newChat,
		Load:   loadFile,
	})
	if err != nil {
		return err
	}

	if result.Loaded {
		if _, err := render.PrintView(cmd.OutOrStdout(), result.Transcript); err != nil {
			log.Warn().Err(err).Msg("Failed to print styled chat history")
		}
	}

	return nil
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
