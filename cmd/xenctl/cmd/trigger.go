package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Dispatch a pending batch immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFactory()
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		n, err := client.Trigger(ctx)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			data, _ := json.MarshalIndent(map[string]int{"dispatched": n}, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		if IsQuiet() {
			fmt.Println(n)
			return nil
		}
		fmt.Printf("Dispatched %d communication(s)\n", n)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Return stuck in-flight communications to the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFactory()
		ctx, cancel := NewCommandContext(context.Background())
		defer cancel()

		n, err := client.Sweep(ctx)
		if err != nil {
			return err
		}

		if IsJSONOutput() {
			data, _ := json.MarshalIndent(map[string]int64{"reclaimed": n}, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		if IsQuiet() {
			fmt.Println(n)
			return nil
		}
		fmt.Printf("Reclaimed %d stuck communication(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(sweepCmd)
}
