package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aicare/casemgr/config"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/store"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "casemgr",
		Short:         "Post-operative monitoring case management service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml (default: ./config.yaml, ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(setupCmd(&configFile))
	rootCmd.AddCommand(checkSchemaCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.listen(ctx); err != nil {
		a.log.Warn(err, "cache invalidation listener unavailable, relying on TTL")
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        a.router.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server exited properly")
	return nil
}

// setupCmd creates missing tables and appends missing trailing columns.
func setupCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create or repair every table header in the backing store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log)
			var closers []io.Closer
			defer func() { closeAll(closers, log) }()

			raw, _, err := openStore(cmd.Context(), cfg, &closers)
			if err != nil {
				return err
			}
			st := store.NewGuarded(raw, guardConfig(cfg.Store), nil, log)
			if err := repository.Setup(cmd.Context(), st, log); err != nil {
				return err
			}
			fmt.Println("All tables are up to date.")
			return nil
		},
	}
}

// checkSchemaCmd reports drift without changing anything. It exits non-zero
// when any table needs attention.
func checkSchemaCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-schema",
		Short: "Compare stored table headers with the schema registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log)
			var closers []io.Closer
			defer func() { closeAll(closers, log) }()

			raw, _, err := openStore(cmd.Context(), cfg, &closers)
			if err != nil {
				return err
			}
			drift, err := repository.CheckSchema(cmd.Context(), store.NewGuarded(raw, guardConfig(cfg.Store), nil, log))
			if err != nil {
				return err
			}
			if len(drift) == 0 {
				fmt.Println("No schema drift.")
				return nil
			}

			fmt.Printf("%-24s %s\n", "TABLE", "PROBLEM")
			for _, d := range drift {
				problem := "missing columns: " + strings.Join(d.Missing, ", ")
				if d.Err != nil {
					problem = d.Err.Error()
				}
				fmt.Printf("%-24s %s\n", d.Table, problem)
			}
			return fmt.Errorf("%d table(s) drifted from the schema", len(drift))
		},
	}
}
