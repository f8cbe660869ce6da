package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bgdnvk/resonance/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage resonance configuration",
	Long:  `Create and inspect the resonance configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a default configuration file in your home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			configPath = filepath.Join(home, ".resonance.yaml")
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(configPath); err == nil && !force {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists at %s\n", configPath)
			return nil
		}

		if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0600); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the merged configuration (file, environment and defaults) with secrets redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		settings := redact(viper.AllSettings())
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", f)
		}
		out, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var secretKeys = []string{"api_key", "token", "password", "dsn", "secret"}

// redact masks values whose key names a secret.
func redact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		switch v := val.(type) {
		case map[string]any:
			out[k] = redact(v)
		case string:
			if v != "" && isSecretKey(k) {
				out[k] = "********"
			} else {
				out[k] = v
			}
		default:
			out[k] = v
		}
	}
	return out
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	if strings.HasSuffix(k, "_env") {
		return false
	}
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing configuration file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
