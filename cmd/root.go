// Package cmd provides the contactform command-line interface.
//
// Configuration is layered (highest priority first):
//  1. Command-line flags (--port, --endpoint, ...)
//  2. CONTACTFORM_<SECTION>_<KEY> environment variables
//  3. The config file: --config, then CONTACTFORM_CONFIG_FILE, then
//     .contactform.yml in the working directory
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/contactform/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "contactform",
	Short: "Serve a contact card backed by a server-driven form",
	Long: `contactform serves a single contact card: a form whose state lives on the
server, an invisible reCAPTCHA challenge gating every send, toast
notifications for the outcome and an optional list of social links.

Quick Start:
  contactform serve --site-key KEY --endpoint https://formspree.io/f/ID
  contactform render > contact.html
  contactform version`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .contactform.yml, can also use CONTACTFORM_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".contactform")
	}

	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	// a missing config file is fine; everything can come from flags and env
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
