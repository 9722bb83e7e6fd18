package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/xDMPx/PyDockMateAgent/app"
	"github.com/xDMPx/PyDockMateAgent/app/hubsim"
	"github.com/xDMPx/PyDockMateAgent/app/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "hubsim",
		Short: "In-memory PyDockMate hub for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			logger, err := app.NewLogger(cmd.ErrOrStderr(), "info", "console")
			if err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, listen, logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":"+utils.HubPort, "Address to listen on")
	return cmd
}

func serve(ctx context.Context, listen string, logger zerolog.Logger) error {
	server := &http.Server{
		Addr:           listen,
		Handler:        hubsim.NewRouter(hubsim.NewMemoryStore()),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", listen).Msg("hub simulator listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
