package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wkamthorn/campuswallet/internal/db"
	"github.com/wkamthorn/campuswallet/internal/handlers"
	"github.com/wkamthorn/campuswallet/internal/logger"
	"github.com/wkamthorn/campuswallet/internal/repository/postgres"
	"github.com/wkamthorn/campuswallet/internal/service/account"
	"github.com/wkamthorn/campuswallet/internal/service/auth"
	"github.com/wkamthorn/campuswallet/internal/service/auth/tokenmanager"
	"github.com/wkamthorn/campuswallet/internal/service/ledger"
	"github.com/wkamthorn/campuswallet/internal/service/notify"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger   logger.Logger
	listener *notify.Listener
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.RefreshToken())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.DefaultHasher, tokenManager, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	accountService := account.NewService(auth.DefaultHasher, storage)
	ledgerService := ledger.NewService(storage)

	broker := notify.NewBroker()
	listener := notify.NewListener(pool, broker, log)

	mux := handlers.NewRouter(
		authService,
		accountService,
		ledgerService,
		broker,
		log,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		listener:   listener,
	}, nil
}

// Run starts the http server and the change feed listener, and closes
// both gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		if err := s.listener.Run(srvCtx); err != nil && srvCtx.Err() == nil {
			s.logger.Error("change feed listener stopped", "error", err)
		}
	}()

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	s.logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
