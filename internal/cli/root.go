package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/validate"
)

const version = "0.3.0"

// envKeys maps config keys to env names: WIKIEDITS_CRAWL_YEARS_BACK overrides crawl.years_back
var envKeys = strings.NewReplacer(".", "_")

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wikiedits",
	Short: "Wikiedits - build sentence-level edit datasets from wiki revision histories",
	Long: `Wikiedits crawls the revision history of wiki categories, pairs each
revision with its parent, diffs the pairs with latexdiff and extracts
single-sentence Add, Delete and Replace edits.

Stages:
  crawl   fetch revisions of every category into raw JSONL files
  merge   clean, group and deduplicate raw files into one chain file
  diff    run latexdiff over every chain entry
  parse   extract edit records from the diff files
  run     merge, diff and parse in one go`,
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
		fmt.Printf("wikiedits v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.wikiedits/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("domain", "", "wiki domain (wikipedia, wikinews)")
	rootCmd.PersistentFlags().String("main-category", "", "main category to crawl or merge")
	rootCmd.PersistentFlags().String("data-dir", "", "root directory of all stage outputs")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error, off)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("domain", rootCmd.PersistentFlags().Lookup("domain"))
	_ = viper.BindPFlag("main_category", rootCmd.PersistentFlags().Lookup("main-category"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".wikiedits"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("WIKIEDITS")
	viper.SetEnvKeyReplacer(envKeys)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so env variables can override it.
// Keys come from the YAML form of cfg.
func registerDefaults(cfg model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)
	return nil
}

// loadConfig merges defaults, config file, env and flags, then validates the result.
// An invalid configuration is the only fatal error and is raised before any work starts.
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Config(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setup loads the configuration and initialises logging for a stage command
func setup() (model.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.Log.Level
	if verbose && (level == "" || level == "info") {
		level = "debug"
	}
	logger.Init(logger.Options{
		Level:  level,
		Format: cfg.Log.Format,
		StaticFields: map[string]string{
			"domain": cfg.Domain,
		},
	})
	return cfg, logger.Named("cli"), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
