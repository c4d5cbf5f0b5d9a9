package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "gateway plans and executes GraphQL operations across federated services",
	Long: `gateway is a GraphQL federation gateway.

It reads a supergraph (federation SDL or YAML config), splits every incoming operation
into fetches against the owning services and merges their results into one response.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.federation-gateway.yaml)")
	rootCmd.PersistentFlags().String(keySupergraph, "", "path of the supergraph SDL or YAML config")
	rootCmd.PersistentFlags().String(keyLogLevel, defaultLogLevel, "log level (debug, info, warn, error)")
	_ = viper.BindPFlag(keySupergraph, rootCmd.PersistentFlags().Lookup(keySupergraph))
	_ = viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup(keyLogLevel))

	setDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".federation-gateway")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
