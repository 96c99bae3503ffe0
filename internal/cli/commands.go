package cli

import (
	"github.com/spf13/cobra"

	"github.com/hackgods/patient-queue-engine/internal/api"
)

type EnqueueOptions struct {
	*RootOptions
	PatientID string
	UHID      string
	Priority  string
}

func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a patient to the queue",
		Long: `Add a patient to the queue by id or UHID.

Example:
  queuectl enqueue --patient PAT_1A2B3C4D --priority urgent
  queuectl enqueue --uhid UHID-0012345678`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := opts.client().Enqueue(cmd.Context(), api.EnqueueRequest{
				PatientID: opts.PatientID,
				UHID:      opts.UHID,
				Priority:  opts.Priority,
			})
			if err != nil {
				return err
			}
			return printEntry(cmd.OutOrStdout(), opts.Format, entry)
		},
	}

	cmd.Flags().StringVar(&opts.PatientID, "patient", "", "patient id")
	cmd.Flags().StringVar(&opts.UHID, "uhid", "", "patient UHID")
	cmd.Flags().StringVar(&opts.Priority, "priority", "normal", "normal or urgent")
	cmd.MarkFlagsMutuallyExclusive("patient", "uhid")
	cmd.MarkFlagsOneRequired("patient", "uhid")

	return cmd
}

type transition struct {
	use    string
	action string
	short  string
}

var transitionCommands = []transition{
	{"nurse-complete", "nurse-complete", "Mark nurse intake done"},
	{"timeline-ready", "timeline-ready", "Mark the clinical timeline ready"},
	{"start", "start", "Start the consultation"},
	{"complete", "complete", "Complete the consultation"},
	{"cancel", "cancel", "Remove a not-yet-served entry"},
}

func NewTransitionCommand(rootOpts *RootOptions, t transition) *cobra.Command {
	return &cobra.Command{
		Use:   t.use + " <queue-id>",
		Short: t.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := rootOpts.client().Transition(cmd.Context(), args[0], t.action)
			if err != nil {
				return err
			}
			return printEntry(cmd.OutOrStdout(), rootOpts.Format, entry)
		},
	}
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the full queue with stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := rootOpts.client().Queue(cmd.Context())
			if err != nil {
				return err
			}
			return printQueue(cmd.OutOrStdout(), rootOpts.Format, view)
		},
	}
}

func NewWaitingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "waiting",
		Short: "List entries still waiting for the nurse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			waiting, err := rootOpts.client().Waiting(cmd.Context())
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), rootOpts.Format, waiting.Entries)
		},
	}
}

func NewCurrentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show who is with the doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := rootOpts.client().Current(cmd.Context())
			if err != nil {
				return err
			}
			return printCurrent(cmd.OutOrStdout(), rootOpts.Format, cur)
		},
	}
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <queue-id>",
		Short: "Show one queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := rootOpts.client().Entry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printEntry(cmd.OutOrStdout(), rootOpts.Format, entry)
		},
	}
}

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the stale timeline sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rootOpts.client().Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printSweep(cmd.OutOrStdout(), rootOpts.Format, res)
		},
	}
}
