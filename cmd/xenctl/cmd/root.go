package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/prateekshukla17/XenCRM-Backend/internal/config"
	"github.com/prateekshukla17/XenCRM-Backend/internal/domain"
	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
	"github.com/prateekshukla17/XenCRM-Backend/internal/httpclient"
	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
)

var (
	configPath string
	serverAddr string
	apiKey     string
	timeout    time.Duration
	jsonOut    bool
	quiet      bool

	cfg *config.CLIConfig
)

// apiClient is the slice of the admin API the commands use; swapped for a
// mock in tests.
type apiClient interface {
	Health(ctx context.Context) (*pipeline.Health, error)
	Trigger(ctx context.Context) (int, error)
	Sweep(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[string]int64, error)
	Counters(ctx context.Context, campaignID string) (*domain.CampaignCounters, error)
	Enqueue(ctx context.Context, req httpclient.EnqueueRequest) (*domain.Communication, error)
	StreamEvents(ctx context.Context, communicationID, campaignID string) (<-chan events.DeliveryEvent, error)
}

var clientFactory = func() apiClient {
	return httpclient.New("http://"+cfg.ServerAddr, cfg.APIKey)
}

var rootCmd = &cobra.Command{
	Use:   "xenctl",
	Short: "CLI for the XenCRM messaging pipeline",
	Long: `xenctl drives the XenCRM campaign messaging pipeline.

Enqueue communications, trigger and sweep the delivery queue, and watch
delivery events in real time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadCLI(configPath)
		if err != nil {
			return err
		}
		if serverAddr != "" {
			cfg.ServerAddr = serverAddr
		}
		if apiKey != "" {
			cfg.APIKey = apiKey
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the xenctl config file (default ~/.xenctl.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "", "admin API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "admin API key")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON responses")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only the essential result")
}

func IsQuiet() bool {
	return quiet
}

func IsJSONOutput() bool {
	return jsonOut
}

// NewCommandContext bounds a one-shot command by the global timeout flag.
func NewCommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}
