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
	_ "github.com/go-sql-driver/mysql"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/config"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/logging"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/service"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/store"
	"gitlab.com/dirk.krummacker/contacts-directory/internal/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Usage example on the command line:
// > PORT=8080 DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := store.Open(cfg.DSN())
	if err != nil {
		logger.Fatal("could not open database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contacts, err := store.New(ctx, db)
	if err != nil {
		logger.Fatal("could not prepare statements", zap.Error(err))
	}
	defer contacts.Close()

	shutdownTracing, err := tracing.Init(ctx, logger, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.TracingEndpoint,
		Insecure:    cfg.TracingInsecure,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		logger.Fatal("could not initialize tracing", zap.Error(err))
	}
	opts := service.Options{
		HTTPLogging: cfg.HTTPLogging,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.TracingEnabled {
		opts.ServiceName = cfg.ServiceName
	}

	svc := service.New(contacts, logger, service.Today)
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           svc.Router(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), shutdownTracing(shutdownCtx))
	})
	if err := group.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
}
