package cli

import (
	"fmt"
	"strconv"

	"github.com/harun/chatline/internal/config"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats",
	Long: `List the chat histories in the history directory, oldest first.
The active chat is marked with *.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if errs := config.NewValidator().ValidatePaths(a.cfg.Paths); len(errs) > 0 {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, errs[0])
	}

	store := a.Store()
	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No chats in %s\n", store.Dir())
		return nil
	}

	active, err := a.Pointer().Get()
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable active chat pointer")
	}
	if active != "" && !store.Exists(active) {
		fmt.Fprintf(out, "Active chat %s no longer exists; the next message starts a new chat.\n", active)
		active = ""
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"", "File", "Created", "Updated", "Messages", "Tokens"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)

	for _, e := range entries {
		marker := ""
		if e.Filename == active {
			marker = "*"
		}
		table.Append([]string{
			marker,
			e.Filename,
			e.Transcript.CreatedAt.String(),
			e.Transcript.LastUpdatedAt.String(),
			strconv.Itoa(len(e.Transcript.Messages)),
			strconv.Itoa(e.Transcript.Usage.TotalTokens),
		})
	}
	table.Render()

	return nil
}
