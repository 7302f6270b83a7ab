package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "smm-storefront",
	Short: "SMM Storefront payments",
	Long:  `Balance top-up payments through Epoint and Payriff, with webhook reconciliation.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yml from path, or the environment when running in
// a container. The process logger is initialised from the result.
func loadConfig(path string) (*internal.Config, error) {
	var cfg *internal.Config

	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg = internal.LoadConfigFromEnv()
	} else {
		v := viper.New()
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.SetEnvPrefix("ENV")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		v.SetDefault("http_server.port", 8080)
		v.SetDefault("payment.default_provider", "epoint")
		v.SetDefault("payment.request_timeout", "15s")
		v.SetDefault("payment.reconcile.max_workers", 4)
		v.SetDefault("payment.reconcile.job_queue_size", 100)
		v.SetDefault("payment.reconcile.pending_after", "15m")
		v.SetDefault("payment.reconcile.batch_size", 200)
		v.SetDefault("observability.metrics.enabled", true)
		v.SetDefault("observability.metrics.path", "/metrics")
		v.SetDefault("observability.logging.level", "info")
		v.SetDefault("observability.logging.format", "json")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}

		cfg = &internal.Config{}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("error unmarshaling config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
}
