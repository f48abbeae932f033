package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fidlab/quadmatch/internal/config"
	"github.com/fidlab/quadmatch/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "quadmatch",
	Short: "2D point-set registration by invariant quad hashing",
	Long: `Registers fiducial bead frames against each other without prior
correspondence. Each frame is reduced to scale-and-rotation invariant
four-point codes; matching codes between two frames seed affine
hypotheses that are verified against the full point sets and scored as
log-odds against chance.

This tool provides:
- Pairwise registration of CSV/JSON bead frames
- Frame inspection with quad code statistics
- Parallel batch registration with SQLite persistence
- An HTTP + WebSocket registration service
- Synthetic benchmarks across bead densities

Examples:
  quadmatch match reference.csv moving.csv
  quadmatch batch --ref-dir camA/ --other-dir camB/ --format json
  quadmatch serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		// If no version flag, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	// Initialize configuration loader
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	// Global flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/quadmatch, /etc/quadmatch)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", defaults.Log.Format, "log output format (text, json)")

	// Matcher knobs shared by every command that builds an engine
	rootCmd.PersistentFlags().Float64("min-size", defaults.Matcher.MinSize, "minimum anchor separation in pixels")
	rootCmd.PersistentFlags().Float64("max-size", defaults.Matcher.MaxSize, "maximum anchor separation in pixels")
	rootCmd.PersistentFlags().Int("max-neighbors", defaults.Matcher.MaxNeighbors,
		"neighbor candidates per anchor when drawing free points")
	rootCmd.PersistentFlags().Float64("tolerance", defaults.Matcher.Tolerance, "code-space probe radius")
	rootCmd.PersistentFlags().Float64("inlier-radius", defaults.Matcher.InlierRadius,
		"verification radius in reference pixels")
	rootCmd.PersistentFlags().Int("min-inliers", defaults.Matcher.MinInliers,
		"minimum correspondences for a hypothesis to survive")
	rootCmd.PersistentFlags().String("index", defaults.Spatial.Kind, "spatial index kind (kdtree, grid)")
	rootCmd.PersistentFlags().Float64("grid-cell", defaults.Spatial.CellSize,
		"grid index cell size in pixels (0 = from point density)")
	rootCmd.PersistentFlags().IntP("workers", "w", defaults.Parallel.Workers,
		"worker goroutines (0 = GOMAXPROCS)")

	// Version flag for tests and usability
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	// Bind flags to viper
	bindRootFlags(rootCmd)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Initialize configuration if not already done
		if globalConfig == nil {
			initConfig()
		}

		// Determine log level from config, verbose flag wins
		logLevel := globalConfig.SlogLevel()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel = slog.LevelDebug
		}

		// Set up structured logging on stderr so command output stays
		// machine-readable
		opts := &slog.HandlerOptions{Level: logLevel}
		var handler slog.Handler
		if globalConfig.Log.Format == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}
}

// bindRootFlags binds the persistent flags to their viper configuration keys.
func bindRootFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"matcher.min_size", "min-size"},
		{"matcher.max_size", "max-size"},
		{"matcher.max_neighbors", "max-neighbors"},
		{"matcher.tolerance", "tolerance"},
		{"matcher.inlier_radius", "inlier-radius"},
		{"matcher.min_inliers", "min-inliers"},
		{"spatial.kind", "index"},
		{"spatial.cell_size", "grid-cell"},
		{"parallel.workers", "workers"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.PersistentFlags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		// Use config file from the flag
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		// Search for config in default locations
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Reload configuration to ensure CLI flags are included
	// This is necessary because flag binding happens after initial config loading
	loader := GetConfigLoader()
	var cfg config.Config
	if err := loader.GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig // Return the original config if unmarshal fails
	}

	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
