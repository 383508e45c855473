package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"companion-safety/internal/handler"
	"companion-safety/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort string

// serveCmd exposes the archive and reports over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run archive and analysis reports over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen port (default from config)")
}

func corsMiddleware(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}

func runServe(cmd *cobra.Command, args []string) error {
	var runs handler.RunStore
	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		repo, err := repository.NewRunRepository(cfg.Database.Path, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		runs = repo
	} else {
		logger.Warn("No database path configured, run archive endpoints are disabled")
	}

	apiHandler := handler.NewHandler(runs, handler.Sources{
		ResultsDir:          cfg.Analysis.ResultsDir,
		ClassificationsPath: cfg.Analysis.ClassificationsPath,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(corsMiddleware)
	apiHandler.RegisterRoutes(router)

	port := cfg.Server.Port
	if servePort != "" {
		port = servePort
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
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
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
