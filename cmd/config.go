package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ugagro/greenwatch/internal/config"
	"github.com/ugagro/greenwatch/internal/render"
	"github.com/ugagro/greenwatch/internal/state"
	"github.com/ugagro/greenwatch/internal/threshold"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage greenwatch configuration",
	Long:  `Read and write greenwatch configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit it and set endpoint to your greenhouse webhook URL.")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.Endpoint)
		if err != nil {
			return err
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}
		broker := cfg.MQTTBroker
		if broker == "" {
			broker = "(not set)"
		}

		rows := [][]string{
			{"endpoint", cfg.Endpoint},
			{"default_format", cfg.Format},
			{"timeout", cfg.Timeout.String()},
			{"rate", fmt.Sprintf("%.1f req/s", cfg.Rate)},
			{"refresh_interval", cfg.RefreshInterval.String()},
			{"cap", strconv.Itoa(cfg.Cap)},
			{"db_path", cfg.DBPath},
			{"policy", cfg.Policy.String()},
			{"timezone", cfg.Location.String()},
			{"mqtt_broker", broker},
			{"mqtt_topic", cfg.MQTTTopic},
			{"mqtt_client_id", cfg.MQTTClientID},
			{"config_file", src},
		}

		format := resolveFormat(cfg.Format)
		if format == render.FormatJSON {
			out := make(map[string]string, len(rows))
			for _, r := range rows {
				out[r[0]] = r[1]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printSimpleTable(cmd.OutOrStdout(), []string{"KEY", "VALUE"}, func(add func(...string)) {
			for _, r := range rows {
				add(r...)
			}
		})
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  greenwatch config set endpoint http://greenhouse.local:5678/webhook/greenhouse-data
  greenwatch config set refresh_interval 1m
  greenwatch config set policy watermark
  greenwatch config set mqtt_broker tcp://broker.local:1883`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		f, err := config.ReadFile(path)
		if err != nil {
			return err
		}
		key := strings.ToLower(args[0])
		if err := setConfigKey(&f, key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

var configKeys = []string{
	"endpoint", "default_format", "timeout", "rate", "refresh_interval", "cap",
	"db_path", "policy", "timezone", "mqtt_broker", "mqtt_topic", "mqtt_client_id",
}

// setConfigKey validates val and stores it under key in f.
func setConfigKey(f *config.File, key, val string) error {
	switch key {
	case "endpoint":
		f.Endpoint = val
	case "default_format", "format":
		if err := validateFormat(val); err != nil {
			return err
		}
		f.DefaultFormat = val
	case "timeout":
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("timeout must be a duration (e.g. 10s): %w", err)
		}
		f.Timeout = val
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("rate must be a positive number")
		}
		f.Rate = r
	case "refresh_interval":
		d, err := time.ParseDuration(val)
		if err != nil || d < time.Second {
			return fmt.Errorf("refresh_interval must be a duration of at least 1s")
		}
		f.RefreshInterval = val
	case "cap":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("cap must be a positive integer")
		}
		f.Cap = n
	case "db_path":
		f.DBPath = val
	case "policy":
		if _, err := threshold.ParsePolicy(val); err != nil {
			return err
		}
		f.Policy = val
	case "timezone":
		if _, err := time.LoadLocation(val); err != nil {
			return fmt.Errorf("timezone %q: %w", val, err)
		}
		f.Timezone = val
	case "mqtt_broker":
		f.MQTTBroker = val
	case "mqtt_topic":
		f.MQTTTopic = val
	case "mqtt_client_id":
		f.MQTTClientID = val
	case "theme":
		if _, err := state.ParseTheme(val); err != nil {
			return err
		}
		return fmt.Errorf("theme is a saved preference, use: greenwatch theme set %s", val)
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
