package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/pkg/client"
	"github.com/sw33tLie/riderpoint/pkg/storage"

	homedir "github.com/mitchellh/go-homedir"
)

var cfgFile string

const (
	LOGO = `        _     __                       _       __
   ____(_)___/ /__  _________  ____  (_)___  / /_
  / ___/ / __  / _ \/ ___/ __ \/ __ \/ / __ \/ __/
 / /  / / /_/ /  __/ /  / /_/ / /_/ / / / / / /_
/_/  /_/\__,_/\___/_/  / .___/\____/_/_/ /_/\__/
                      /_/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riderpoint",
	Short: "Motorcycle tours, forum and feed for riders.",
	Long: LOGO + `riderpoint serves a catalog of motorcycle tours you can narrow by region, country and state,
a forum organized in categories, topics and threads, and a media feed.

Run "riderpoint seed" once, then "riderpoint serve" to open the web interface.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelString, _ := cmd.Flags().GetString("loglevel")
		return utils.SetLogLevel(levelString)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.riderpoint.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("dbpath", "", "", "Path to SQLite DB file (default: ~/.config/riderpoint/riderpoint.sqlite)")
	rootCmd.PersistentFlags().StringP("api", "", "", "Talk to a riderpoint API instead of the local database (example: http://localhost:7071/api)")
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy for API requests (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")

	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".riderpoint")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// Set default values for all keys
	viper.SetDefault("db.path", "")
	viper.SetDefault("api.url", "")
	viper.SetDefault("api.username", "")
	viper.SetDefault("api.password", "")
	viper.SetDefault("tours.empty_root_policy", "show-prompt")
	viper.SetDefault("tours.locale", "de")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.riderpoint.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating config file: %s\n", err)
			}
		}
	}
}

// dbPath resolves the database file from --dbpath, the config file or the
// default location.
func dbPath() (string, error) {
	return utils.GetAbsDBPath(viper.GetString("db.path"))
}

// openDB opens the local database. mustExist refuses to create a new file.
func openDB(mustExist bool) (*storage.DB, string, error) {
	path, err := dbPath()
	if err != nil {
		return nil, "", err
	}
	if mustExist {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, path, fmt.Errorf("database file not found: %s (run \"riderpoint seed\" first)", path)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, path, err
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, path, err
	}
	return db, path, nil
}

// openWriter is openDB under the writer lock. The returned func closes the
// database and releases the lock.
func openWriter(ctx context.Context, mustExist bool) (*storage.DB, string, func(), error) {
	path, err := dbPath()
	if err != nil {
		return nil, "", nil, err
	}
	release, err := utils.LockWriter(ctx, path)
	if err != nil {
		return nil, path, nil, err
	}
	db, _, err := openDB(mustExist)
	if err != nil {
		release()
		return nil, path, nil, err
	}
	return db, path, func() {
		db.Close()
		if err := release(); err != nil {
			utils.Log.Warn(err)
		}
	}, nil
}

// newAPIClient returns a client for api.url, or nil when it is unset.
func newAPIClient(cmd *cobra.Command) (*client.Client, error) {
	apiURL := viper.GetString("api.url")
	if apiURL == "" {
		return nil, nil
	}
	proxy, _ := cmd.Flags().GetString("proxy")
	return client.New(apiURL, client.WithProxy(proxy))
}
