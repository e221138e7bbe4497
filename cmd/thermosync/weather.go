package main

import (
	"fmt"

	"github.com/alfacon/thermosync/pkg/weather"
	"github.com/spf13/cobra"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Fetch and print the current weather reading",
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

		client := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.Latitude, cfg.Longitude).
			WithTimeout(cfg.WeatherTimeout)

		reading, err := client.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("weather fetch failed: %w", err)
		}

		fmt.Printf("%.1f°C, %d%% humidity, %s (observed %s)\n",
			reading.Temperature, reading.Humidity, reading.Description,
			reading.ObservedAt.Format("15:04:05 MST"))
		return nil
	},
}
