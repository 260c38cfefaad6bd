// Command syncctl inspects and drives a running GophSync client through its
// status API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/statusapi"
	"github.com/spf13/cobra"
)

type options struct {
	addr    string
	token   string
	timeout time.Duration
	asJSON  bool
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Inspect and drive a running GophSync client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.addr, "addr", "127.0.0.1:7070", "status API address")
	root.PersistentFlags().StringVar(&o.token, "token", os.Getenv("GOPHSYNC_STATUS_TOKEN"), "status API bearer token")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&o.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		statusCmd(o),
		syncCmd(o),
		resetCmd(o),
		watchCmd(o),
	)
	return root
}

func statusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync status of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			sts, err := statusapi.NewClient(o.addr, o.token).Status(ctx)
			if err != nil {
				return err
			}
			return printStatuses(cmd.OutOrStdout(), sts, o.asJSON)
		},
	}
}

func syncCmd(o *options) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending changes and pull from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			sts, err := statusapi.NewClient(o.addr, o.token).Sync(ctx, full)
			if err != nil {
				return err
			}
			return printStatuses(cmd.OutOrStdout(), sts, o.asJSON)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "ignore the last sync time and pull everything")
	return cmd
}

func resetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe local data and pending changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
			defer cancel()
			sts, err := statusapi.NewClient(o.addr, o.token).Reset(ctx)
			if err != nil {
				return err
			}
			return printStatuses(cmd.OutOrStdout(), sts, o.asJSON)
		},
	}
}

func watchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream status changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return statusapi.NewClient(o.addr, o.token).Watch(cmd.Context(), func(m statusapi.Message) {
				if err := printStatuses(out, m.Statuses, o.asJSON); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			})
		},
	}
}

func printStatuses(w io.Writer, sts []statusapi.StatusView, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		return enc.Encode(sts)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tSTATE\tRECORDS\tPENDING\tLAST SYNC\tERROR")
	for _, st := range sts {
		last := "never"
		if !st.LastSync.IsZero() {
			last = st.LastSync.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", st.Model, st.State, st.Records, st.Pending, last, st.Error)
	}
	return tw.Flush()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
