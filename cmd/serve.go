package cmd

import (
	"github.com/alpha216/dwroadmap/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored snapshots over a JSON API",
	Long: `Starts an HTTP server exposing the stored snapshots:

  GET /api/stats
  GET /api/snapshots
  GET /api/snapshot?id=ID
  GET /api/roadmap?id=ID&section=NAME
  GET /api/summary?id=ID
  GET /api/courses/{code}?id=ID

Without an id the latest snapshot is used. Basic auth is enabled when a
username and password are set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openDB(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		srv := server.New(db, cfg.Server.Username, cfg.Server.Password)
		return srv.Start(cmd.Context(), cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "127.0.0.1:8080", "Address to bind the server to (overrides server.addr)")
	serveCmd.Flags().StringP("username", "u", "", "Username for basic auth (optional)")
	serveCmd.Flags().StringP("password", "p", "", "Password for basic auth (optional)")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.username", serveCmd.Flags().Lookup("username"))
	viper.BindPFlag("server.password", serveCmd.Flags().Lookup("password"))
}
