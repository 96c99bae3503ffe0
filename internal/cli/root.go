package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server string
	Format string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the queue admin console.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "queuectl",
		Short: "Admin console for the patient queue",
		Long:  "Inspect the patient queue and drive entries through intake, triage and consultation.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("API_BASE_URL")
	if server == "" {
		server = "http://localhost:8080"
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "queue api base URL")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewEnqueueCommand(opts))
	for _, t := range transitionCommands {
		cmd.AddCommand(NewTransitionCommand(opts, t))
	}
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewWaitingCommand(opts))
	cmd.AddCommand(NewCurrentCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) client() *Client {
	return NewClient(o.Server, nil)
}
