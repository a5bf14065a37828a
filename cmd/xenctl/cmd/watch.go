package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	watchCommunicationID string
	watchCampaignID      string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch delivery events in real time",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchCommunicationID == "" && watchCampaignID == "" {
			return fmt.Errorf("must provide --communication or --campaign")
		}

		client := clientFactory()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stream, err := client.StreamEvents(ctx, watchCommunicationID, watchCampaignID)
		if err != nil {
			return err
		}

		if IsQuiet() || IsJSONOutput() {
			for event := range stream {
				if IsQuiet() {
					fmt.Printf("%s %s\n", event.CommunicationID, event.Status)
					continue
				}
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			}
			return nil
		}

		return runWatchUI(stream)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchCommunicationID, "communication", "", "Filter by communication ID")
	watchCmd.Flags().StringVar(&watchCampaignID, "campaign", "", "Filter by campaign ID")
}
