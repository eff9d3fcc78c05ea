package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pagecast/pagecast/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pagecast configuration",
	Long:  `View and manage pagecast configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current pagecast configuration.`,
	Example: `  # Show configuration as YAML (default)
  pagecast config show

  # Show configuration as JSON
  pagecast config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value.`,
	Example: `  # Set console server port
  pagecast config set server_port 9090

  # Switch to the GStreamer sink
  pagecast config set sink gst`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get console server port
  pagecast config get server_port

  # Get the active rendering engine
  pagecast config get engine`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	if err := setConfigKey(cfg, key, value); err != nil {
		return err
	}
	if err := configMgr.Update(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, value)
	return nil
}

func setConfigKey(cfg *config.App, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid number: %s", value)
		}
		return n, nil
	}

	switch key {
	case "server_port":
		port, err := atoi()
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid port number: %s", value)
		}
		cfg.ServerPort = port
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		cfg.LogLevel = value
	case "log_pretty":
		pretty, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		cfg.LogPretty = pretty
	case "engine":
		if value != "sim" && value != "x11" {
			return fmt.Errorf("invalid engine: %s (use: sim or x11)", value)
		}
		cfg.Engine = value
	case "sink":
		if value != "mjpeg" && value != "gst" {
			return fmt.Errorf("invalid sink: %s (use: mjpeg or gst)", value)
		}
		cfg.Sink = value
	case "gst_port":
		port, err := atoi()
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid port number: %s", value)
		}
		cfg.GstPort = port
	case "surfaces_file":
		cfg.SurfacesFile = value
	case "preview.width":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Preview.Width = n
	case "preview.height":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Preview.Height = n
	case "stats.window":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Stats.Window = n
	case "stats.emit_every":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Stats.EmitEvery = n
	case "usage.interval_seconds":
		n, err := atoi()
		if err != nil {
			return err
		}
		cfg.Usage.IntervalSeconds = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()

	switch key {
	case "server_port":
		fmt.Println(cfg.ServerPort)
	case "log_level":
		fmt.Println(cfg.LogLevel)
	case "log_pretty":
		fmt.Println(cfg.LogPretty)
	case "engine":
		fmt.Println(cfg.Engine)
	case "sink":
		fmt.Println(cfg.Sink)
	case "gst_port":
		fmt.Println(cfg.GstPort)
	case "surfaces_file":
		fmt.Println(cfg.SurfacesFile)
	case "preview.width":
		fmt.Println(cfg.Preview.Width)
	case "preview.height":
		fmt.Println(cfg.Preview.Height)
	case "stats.window":
		fmt.Println(cfg.Stats.Window)
	case "stats.emit_every":
		fmt.Println(cfg.Stats.EmitEvery)
	case "usage.interval_seconds":
		fmt.Println(cfg.Usage.IntervalSeconds)
	default:
		return fmt.Errorf("configuration key not found: %s", key)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(configMgr.ConfigPath())
	return nil
}
