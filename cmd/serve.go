package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/riderpoint/internal/config"
	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/internal/web"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/client"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"github.com/sw33tLie/riderpoint/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the riderpoint web interface",
	Long: `Start the web interface: the tour selector with its map, the forum and the feed.

Data comes from the local database, or from a riderpoint API when --api is set.
Settings are read from RIDERPOINT_* environment variables; flags override them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := serverConfig(cmd)
		if err != nil {
			return err
		}

		var (
			backend web.Backend
			tours   fetch.Fetcher[catalog.Tour]
		)
		if cfg.APIURL != "" {
			proxy, _ := cmd.Flags().GetString("proxy")
			c, err := client.New(cfg.APIURL, client.WithProxy(proxy))
			if err != nil {
				return err
			}
			backend, tours = c, client.Fetcher[catalog.Tour](c, client.PathTours)
			utils.Log.Infof("Reading from API %s", cfg.APIURL)
		} else {
			db, path, err := openDB(false)
			if err != nil {
				return err
			}
			defer db.Close()
			backend, tours = db, db.TourFetcher()
			utils.Log.Infof("Reading from database %s", path)
		}

		webCfg := web.Config{
			Policy:  cfg.Policy(),
			Locale:  cfg.Language(),
			Refresh: cfg.RefreshInterval,
		}
		if cfg.Metrics {
			m := metrics.New()
			webCfg.Observer = m
			webCfg.Metrics = m.Handler()
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return web.New(backend, tours, webCfg).Serve(ctx, cfg.Addr, cfg.ReadTimeout, cfg.WriteTimeout)
	},
}

// serverConfig layers the environment, the config file and explicit flags,
// in increasing precedence.
func serverConfig(cmd *cobra.Command) (config.ServerConfig, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return cfg, err
	}
	if _, ok := os.LookupEnv("RIDERPOINT_EMPTY_ROOT_POLICY"); !ok {
		cfg.EmptyRootPolicy = viper.GetString("tours.empty_root_policy")
	}
	if _, ok := os.LookupEnv("RIDERPOINT_LOCALE"); !ok {
		cfg.Locale = viper.GetString("tours.locale")
	}
	if _, ok := os.LookupEnv("RIDERPOINT_DB_PATH"); !ok || cmd.Flags().Changed("dbpath") {
		cfg.DBPath = viper.GetString("db.path")
	}
	if _, ok := os.LookupEnv("RIDERPOINT_API_URL"); !ok || cmd.Flags().Changed("api") {
		cfg.APIURL = viper.GetString("api.url")
	}

	flags := cmd.Flags()
	if _, ok := os.LookupEnv("RIDERPOINT_ADDR"); !ok || flags.Changed("listen") {
		cfg.Addr, _ = flags.GetString("listen")
	}
	if flags.Changed("refresh") {
		cfg.RefreshInterval, _ = flags.GetDuration("refresh")
	}
	if flags.Changed("policy") {
		cfg.EmptyRootPolicy, _ = flags.GetString("policy")
	}
	if flags.Changed("locale") {
		cfg.Locale, _ = flags.GetString("locale")
	}
	if flags.Changed("metrics") {
		cfg.Metrics, _ = flags.GetBool("metrics")
	}
	if cfg.DBPath != "" {
		viper.Set("db.path", cfg.DBPath)
	}
	return cfg, cfg.Validate()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("refresh", 0, "Interval between background cache refreshes, 0 disables (default from RIDERPOINT_REFRESH, 1m)")
	serveCmd.Flags().String("policy", "", "What the tour list shows before a region is picked: show-prompt or show-all")
	serveCmd.Flags().String("locale", "", "Locale used to sort facet options (example: de)")
	serveCmd.Flags().Bool("metrics", true, "Expose prometheus metrics on /metrics")
}
