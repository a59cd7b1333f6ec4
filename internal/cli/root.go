package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ppiankov/eventsweep/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "eventsweep",
	Short: "eventsweep - harvest, normalize and deliver public event listings",
	Long: `eventsweep collects event listings from calendar feeds, syndication
feeds and venue web pages, normalizes them into one canonical record shape
and posts each record to an HTTP sink.

Pages are read through schema.org structured data (JSON-LD, Microdata,
RDFa) with a heuristic card scraper as fallback.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("eventsweep v%s\n", model.Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.eventsweep/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.eventsweep")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// EVENTSWEEP_SINK_URL -> sink.url
	viper.SetEnvPrefix("EVENTSWEEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering config defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so that env
// overrides apply to keys absent from the config file
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	setDefaults("", tree)
	for _, key := range optionalKeys {
		viper.SetDefault(key, "")
	}
	return nil
}

// Keys tagged omitempty never appear in the marshaled defaults
var optionalKeys = []string{
	"http.http_proxy",
	"http.https_proxy",
	"metrics.addr",
	"metrics.textfile",
	"telemetry.endpoint",
	"telemetry.headers",
}

func setDefaults(prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			setDefaults(key, nested)
			continue
		}
		viper.SetDefault(key, value)
	}
}

// loadConfig merges defaults, config file, environment and bound flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Variable name used by the original deployment
	if cfg.Sink.URL == "" {
		cfg.Sink.URL = os.Getenv("AIRTABLE_WEBHOOK")
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}
