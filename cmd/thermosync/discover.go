package main

import (
	"fmt"

	"github.com/alfacon/thermosync/pkg/discovery"
	"github.com/alfacon/thermosync/pkg/retry"
	"github.com/alfacon/thermosync/pkg/thinger"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Sweep the identifier space and list reachable devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		platform := thinger.NewClient(cfg.Server, cfg.Username, cfg.Token).
			WithTimeouts(cfg.ProbeTimeout, cfg.PushTimeout).
			WithPushRetry(retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay})

		space := cfg.Space()
		fmt.Printf("Probing %d candidates (%s)...\n", space.Size(), space)

		reachable := discovery.NewDiscoverer(platform, cfg.ProbeConcurrency).
			Discover(ctx, space.Enumerate())

		for _, id := range reachable {
			fmt.Println(id)
		}
		fmt.Printf("%d of %d reachable\n", len(reachable), space.Size())
		return nil
	},
}
