package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alpha216/dwroadmap/internal/config"
	"github.com/alpha216/dwroadmap/internal/utils"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `     _                              _
  __| |_      ___ __ ___   __ _  __| |_ __ ___   __ _ _ __
 / _' \ \ /\ / / '__/ _ \ / _' |/ _' | '_ ' _ \ / _' | '_ \
| (_| |\ V  V /| | | (_) | (_| | (_| | | | | | | (_| | |_) |
 \__,_| \_/\_/ |_|  \___/ \__,_|\__,_|_| |_| |_|\__,_| .__/
                                                     |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dwroadmap",
	Short: "Turn a DegreeWorks audit into a prerequisite roadmap.",
	Long: LOGO + `dwroadmap reads a DegreeWorks degree audit, fetches the prerequisites of
every course it mentions and shows the remaining requirements as trees in
which each course hangs under the course it depends on.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelString, _ := cmd.Flags().GetString("loglevel")
		return utils.SetLogLevel(levelString)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dwroadmap.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default is ~/.config/dwroadmap/dwroadmap.sqlite)")

	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".dwroadmap")
		viper.SetConfigType("yaml")
	}

	config.BindEnv(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".dwroadmap.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Warnf("Error creating config file: %s", err)
			}
		} else {
			utils.Log.Warnf("Error reading config file: %s", err)
		}
	}
}

// loadConfig returns the validated configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
