package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/config"
	"github.com/bgdnvk/resonance/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile string
	logger  = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "resonance",
	Short: "Emotion-aware multi-backend response orchestrator",
	Long: `Resonance reads the emotional tone of a message, routes it to an analytic
or empathetic model (or both), grounds the prompt in a local knowledge index
and frames the reply to match how urgent the conversation is.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(viper.GetBool("debug"))
		if err != nil {
			return err
		}
		logger = l
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Debug("Using config file", zap.String("path", f))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.resonance.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("artifact", "", "knowledge index location: path, s3://bucket/key or gs://bucket/object")
	rootCmd.PersistentFlags().String("lexicon", "", "YAML file overriding the built-in keyword lists")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("knowledge.artifact", rootCmd.PersistentFlags().Lookup("artifact"))
	_ = viper.BindPFlag("lexicon.file", rootCmd.PersistentFlags().Lookup("lexicon"))

	config.SetDefaults(viper.GetViper())
	rootCmd.Version = Version
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".resonance")
	}

	viper.SetEnvPrefix("RESONANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}
