package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"library-circulation/api"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the circulation API. Students log in to browse the catalog and see
their loans; admins issue, return and fine loans.`,
		Example: `  # Start on the configured port (SERVER_PORT, default 8080)
  library serve

  # Keep data in SQLite and listen on 3000
  library serve --storage sqlite --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openSeeded(cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			srv := a.cfg.Server
			handler := api.NewServer(mgr, api.Options{
				CORSOrigins: srv.CORSOrigins,
				LoginRate:   srv.LoginRate,
				LoginBurst:  srv.LoginBurst,
				TrustProxy:  srv.TrustProxy,
			}, a.log)
			defer handler.Close()

			addr := ":" + srv.Port
			server := &http.Server{
				Addr:         addr,
				Handler:      handler,
				ReadTimeout:  srv.ReadTimeout,
				WriteTimeout: srv.WriteTimeout,
			}

			serverErr := make(chan error, 1)
			go func() {
				a.log.Info("library API available", "addr", addr, "storage", a.cfg.Storage.Driver)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				a.log.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					a.log.Error("server shutdown failed", "err", err)
					return err
				}
				a.log.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&a.overrides.Port, "port", "p", "", "Port to listen on (default 8080)")

	return cmd
}
