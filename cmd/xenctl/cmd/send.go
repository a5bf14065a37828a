package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prateekshukla17/XenCRM-Backend/internal/httpclient"
)

var (
	sendPayloadPath string
	sendRawPayload  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Enqueue a communication for delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sendPayloadPath == "" && sendRawPayload == "" {
			return fmt.Errorf("must provide either --payload or --raw")
		}
		if sendPayloadPath != "" && sendRawPayload != "" {
			return fmt.Errorf("cannot provide both --payload and --raw")
		}

		var data []byte
		var err error
		if sendPayloadPath != "" {
			data, err = os.ReadFile(sendPayloadPath)
			if err != nil {
				return fmt.Errorf("read payload file: %w", err)
			}
		} else {
			data = []byte(sendRawPayload)
		}

		var req httpclient.EnqueueRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parse JSON payload: %w", err)
		}

		if IsQuiet() || IsJSONOutput() {
			client := clientFactory()
			ctx, cancel := NewCommandContext(context.Background())
			defer cancel()

			comm, err := client.Enqueue(ctx, req)
			if err != nil {
				return err
			}

			if IsQuiet() {
				fmt.Println(comm.ID)
			} else {
				data, _ := json.MarshalIndent(comm, "", "  ")
				fmt.Println(string(data))
			}
			return nil
		}

		return NewUI(NewSendModel(req)).Run()
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendPayloadPath, "payload", "", "Path to JSON payload file")
	sendCmd.Flags().StringVar(&sendRawPayload, "raw", "", "Raw JSON payload string")
}
