package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved worker settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("InsiderLens", GetVersion())

	if logger == nil || config == nil {
		return
	}
	logger.Info().
		Str("environment", config.Environment).
		Str("storage_path", config.Storage.Badger.Path).
		Int("max_concurrent", config.Queue.MaxConcurrent).
		Int("max_retries", config.Queue.MaxRetries).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Bool("metrics", config.Metrics.Enabled).
		Msg("Worker configuration")
}
