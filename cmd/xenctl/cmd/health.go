package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show pipeline health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFactory()
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		h, err := client.Health(ctx)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			data, _ := json.MarshalIndent(h, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		if IsQuiet() {
			if h.Running {
				fmt.Println("running")
			} else {
				fmt.Println("stopped")
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COMPONENT\tSTATUS")
		fmt.Fprintf(w, "pipeline\t%s\n", upDown(h.Running))
		fmt.Fprintf(w, "broker\t%s\n", upDown(h.Connected))
		fmt.Fprintf(w, "producer\t%s\n", upDown(h.ProducerRunning))
		fmt.Fprintf(w, "consumer\t%s\n", upDown(h.ConsumerRunning))
		w.Flush()
		return nil
	},
}

func upDown(ok bool) string {
	if ok {
		return successStyle.Render("up")
	}
	return errorStyle.Render("down")
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
