package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show delivery outcome counts for the rolling window",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFactory()
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		stats, err := client.Stats(ctx)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		if len(stats) == 0 {
			fmt.Println("No receipts in the window.")
			return nil
		}

		kinds := make([]string, 0, len(stats))
		for kind := range stats {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OUTCOME\tCOUNT")
		for _, kind := range kinds {
			fmt.Fprintf(w, "%s\t%d\n", styleOutcome(kind), stats[kind])
		}
		w.Flush()
		return nil
	},
}

func styleOutcome(kind string) string {
	switch kind {
	case "SUCCESS":
		return deliveredStyle.Render(kind)
	case "FAILED":
		return failedStyle.Render(kind)
	case "ERROR":
		return retryingStyle.Render(kind)
	default:
		return kind
	}
}

var countersCmd = &cobra.Command{
	Use:   "counters <campaign-id>",
	Short: "Show delivery counters for a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFactory()
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		counters, err := client.Counters(ctx, args[0])
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			data, _ := json.MarshalIndent(counters, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SENT\tDELIVERED\tFAILED\tPENDING")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n",
			counters.Sent, counters.Delivered, counters.Failed, counters.Pending)
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(countersCmd)
}
