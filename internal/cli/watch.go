package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hackgods/patient-queue-engine/internal/queue"
	redisclient "github.com/hackgods/patient-queue-engine/internal/redis"
)

type WatchOptions struct {
	*RootOptions
	RedisAddr     string
	RedisPassword string
	Channel       string
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream queue changes as they are committed",
		Long: `Stream queue changes from the Redis channel the api-server publishes to.
Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, opts, cmd.OutOrStdout())
		},
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	channel := os.Getenv("QUEUE_EVENTS_CHANNEL")
	if channel == "" {
		channel = "queue:events"
	}

	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", addr, "redis host:port")
	cmd.Flags().StringVar(&opts.RedisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "redis password")
	cmd.Flags().StringVar(&opts.Channel, "channel", channel, "pub/sub channel with queue changes")

	return cmd
}

func watch(ctx context.Context, opts *WatchOptions, w io.Writer) error {
	rdb, err := redisclient.NewRedisClient(ctx, opts.RedisAddr, "", opts.RedisPassword)
	if err != nil {
		return err
	}
	defer rdb.Close()

	sub := redisclient.NewPublisher(rdb, opts.Channel)
	err = sub.Subscribe(ctx, func(payload []byte) {
		printChange(w, opts.Format, payload)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printChange(w io.Writer, format string, payload []byte) {
	if format == "json" {
		fmt.Fprintln(w, string(payload))
		return
	}

	var c queue.Change
	if err := json.Unmarshal(payload, &c); err != nil {
		fmt.Fprintf(w, "unreadable change: %s\n", payload)
		return
	}
	fmt.Fprintf(w, "%s  %-28s %-12s %-16s v%d\n",
		c.At.Format("15:04:05"), c.Type, c.QueueID, c.Status, c.Version)
}
