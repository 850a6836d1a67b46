package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/weakcast/internal/config"
	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/pkg/weakref"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply cannot race the input loop of `weakcast watch`.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const localConfigPath = ".weakcast/config.yaml"

var (
	version    = "dev"
	cfgFile    string
	cfg        config.Config
	debugFlag  bool
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "weakcast",
	Short: "Multicast to observers you do not own",
	Long: `weakcast exercises a multicast subject that holds its observers weakly.
Observers disappear from the fan-out once their owners release them and the
garbage collector reclaims them.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/weakcast/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs to log_path")
	rootCmd.PersistentFlags().Bool("strict", false,
		"panic when a value type is registered as an observer")

	_ = viper.BindPFlag("strict_elements", rootCmd.PersistentFlags().Lookup("strict"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .weakcast/config.yaml (current directory)
		// 2. ~/.config/weakcast/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "weakcast"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere: create the default locally.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if writeErr := config.WriteDefaultConfig(localConfigPath); writeErr == nil {
				viper.SetConfigFile(localConfigPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configPath is the file settings are saved to and reloaded from. Empty when
// no file could be read or created.
func configPath() string {
	return viper.ConfigFileUsed()
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if os.Getenv("WEAKCAST_DEBUG") != "" || debugFlag || cfg.Debug {
		logPath := os.Getenv("WEAKCAST_LOG")
		if logPath == "" {
			logPath = cfg.LogPath
		}

		var err error
		if cmd.Name() == "watch" {
			// The TUI owns stdout, so route through tea's file logger.
			logCleanup, err = log.InitWithTeaLog(logPath, "weakcast")
		} else {
			logCleanup, err = log.Init(logPath)
		}
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		log.Info(log.CatConfig, "weakcast starting", "command", cmd.Name(), "config", configPath())
	}

	weakref.SetStrict(cfg.StrictElements)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
