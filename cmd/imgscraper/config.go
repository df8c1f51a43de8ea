package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgscraper/pkg/auth"
	"imgscraper/pkg/config"
	"imgscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGSCRAPER_*) and .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is created as 'imgscraper.yaml' in the current directory unless a
different path is given with --config. Existing files are never overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "imgscraper.yaml"
		}
		if err := runConfigInit(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration file created: " + path)
		fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
		fmt.Fprintln(cmd.OutOrStdout(), "1. Set search.keys, or pass --search-keys when scraping")
		fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'imgscraper auth set-key' to store the proxy API key")
		fmt.Fprintln(cmd.OutOrStdout(), "3. Run 'imgscraper config validate' to check the file")
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the config file and the
environment. The API key is masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, globalOverrides(cmd))
		if err != nil {
			return err
		}
		ui.PrintHighlight("Current Configuration")
		return runConfigShow(cfg, cmd.OutOrStdout())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, globalOverrides(cmd))
		if err != nil {
			return err
		}

		ui.PrintSuccess("Configuration is valid")
		out := cmd.OutOrStdout()
		keys := config.UniqueKeys(cfg.Search.Keys)
		if len(keys) == 0 {
			ui.PrintWarning("No search keys configured", "pass --search-keys when scraping")
		}
		fmt.Fprintln(out, "\nConfiguration summary:")
		fmt.Fprintf(out, "  Search keys: %v\n", keys)
		fmt.Fprintf(out, "  Images per run: %d\n", cfg.Search.NumImages)
		fmt.Fprintf(out, "  Search concurrency: %d\n", cfg.Search.Concurrency)
		fmt.Fprintf(out, "  Proxies: %t (max %d candidates)\n", cfg.Proxy.Enabled, cfg.Proxy.MaxCandidates)
		fmt.Fprintf(out, "  Download workers: %d\n", cfg.Download.Workers)
		fmt.Fprintf(out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
		fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	return config.DefaultConfig().Save(path)
}

func runConfigShow(cfg *config.Config, out io.Writer) error {
	display := *cfg
	if display.Proxy.APIKey != "" {
		display.Proxy.APIKey = auth.MaskKey(display.Proxy.APIKey)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Fprint(out, string(data))

	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (IMGSCRAPER_*)")
	if configFile != "" {
		fmt.Fprintf(out, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}
