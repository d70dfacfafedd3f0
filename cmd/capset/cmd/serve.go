package cmd

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"capset/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dataset editor API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listenAddr != "" {
			cfg.Server.Listen = listenAddr
		}

		log := logrus.New()
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		srv, err := server.New(cfg, log)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"listen": cfg.Server.Listen,
			"root":   cfg.Dataset.Root,
		}).Info("starting server")
		return http.ListenAndServe(cfg.Server.Listen, srv.Handler())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
