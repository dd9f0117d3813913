package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/riderpoint/internal/server"
	"github.com/sw33tLie/riderpoint/pkg/metrics"
)

// apiCmd serves the JSON API used by remote "serve" instances and clients.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the riderpoint JSON API",
	Long:  `Start the JSON API on top of the local database. Write endpoints are protected by basic auth when a username is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := serverConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.APIURL != "" {
			return fmt.Errorf("the api command serves the local database, unset --api / RIDERPOINT_API_URL")
		}

		db, _, err := openDB(false)
		if err != nil {
			return err
		}
		defer db.Close()

		var opts []server.Option
		if user := viper.GetString("api.username"); user != "" {
			opts = append(opts, server.WithBasicAuth(user, viper.GetString("api.password")))
		}
		if cfg.Metrics {
			opts = append(opts, server.WithMetrics(metrics.New()))
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return server.New(db, opts...).Start(ctx, cfg.Addr, cfg.ReadTimeout, cfg.WriteTimeout)
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().String("listen", ":7071", "HTTP listen address")
	apiCmd.Flags().StringP("username", "u", "", "Username for basic auth on write endpoints (optional)")
	apiCmd.Flags().StringP("password", "p", "", "Password for basic auth on write endpoints (optional)")
	apiCmd.Flags().Bool("metrics", true, "Expose prometheus metrics on /metrics")
	viper.BindPFlag("api.username", apiCmd.Flags().Lookup("username"))
	viper.BindPFlag("api.password", apiCmd.Flags().Lookup("password"))
}
