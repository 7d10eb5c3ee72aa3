package config_test

import (
	"fmt"

	"github.com/kennydoit/fin-trade-craft/pkg/config"
)

// Example shows the settings a sweep reads before touching the provider
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		return
	}

	fmt.Printf("env=%s db=%s\n", cfg.Env, cfg.Database.Name)
	fmt.Printf("provider=%s quota=%d/min pause=%s\n",
		cfg.MarketData.BaseURL, cfg.MarketData.CallsPerMinute, cfg.MarketDataInterval())
	if cfg.PipelineConfigPath == "" {
		fmt.Println("pipeline tunables: built-in defaults")
	}
}
