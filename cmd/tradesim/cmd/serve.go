package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradesim/internal/api"
	"github.com/rustyeddy/tradesim/replay"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over HTTP",
	Long: `Load the configured market data and serve the session API.

Example:
  tradesim serve --config sim.yaml --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	tickInterval, err := cfg.TickInterval()
	if err != nil {
		return err
	}
	orderWait, err := cfg.OrderWait()
	if err != nil {
		return err
	}

	m, j, err := newManager(replay.SystemClock{}, tickInterval, orderWait)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeAll(m, j); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(m, api.Options{
		Logger:         log,
		CORSOrigins:    cfg.Server.CORSOrigins,
		InitialBalance: cfg.InitialBalance(),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Strings("instruments", m.Source().Instruments()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
