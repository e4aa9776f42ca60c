package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/example/devtrack-api/config"
	httpadapter "github.com/example/devtrack-api/internal/adapters/http"
	"github.com/example/devtrack-api/internal/adapters/http/handlers"
	authmw "github.com/example/devtrack-api/internal/adapters/http/middleware"
	"github.com/example/devtrack-api/internal/adapters/mail"
	natsadapter "github.com/example/devtrack-api/internal/adapters/nats"
	repo "github.com/example/devtrack-api/internal/adapters/postgres"
	"github.com/example/devtrack-api/internal/domain"
	"github.com/example/devtrack-api/internal/tokenverify"
	"github.com/example/devtrack-api/internal/usecase"
	pkglog "github.com/example/devtrack-api/pkg/log"
)

type App struct {
	cfg      *config.Config
	logger   pkglog.Logger
	db       *gorm.DB
	natsConn *nats.Conn
	sessions repo.SessionRepository
	echo     *echo.Echo
}

func New(ctx context.Context) (*App, error) {
	cfg := config.MustLoad()
	lg := pkglog.New(cfg.AppEnv)

	db, err := gorm.Open(postgres.Open(buildDSN(cfg)), &gorm.Config{
		Logger:         loggerForGorm(cfg),
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Session{}); err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Printf("nats connect failed: %v", err)
	}

	userRepo := repo.NewUserRepository(db)
	sessionRepo := repo.NewSessionRepository(db)

	issuer, err := usecase.NewTokenIssuer(cfg)
	if err != nil {
		return nil, err
	}
	hasher := usecase.NewPasswordHasher(cfg.BcryptCost)

	var mailer mail.Dispatcher = mail.NoopDispatcher{}
	if cfg.MailEnabled {
		mailer = mail.NewHTTPDispatcher(cfg.MailAPIURL, cfg.MailAPIKey, 10*time.Second)
	}

	var events usecase.EventPublisher
	if nc != nil {
		events = natsadapter.NewEventPublisher(nc, cfg.NATSSessionRevokedSubject)
	}

	verifier := tokenverify.NewVerifier(issuer)
	service := usecase.NewAuthService(cfg, lg, userRepo, sessionRepo, hasher, issuer, mailer, events)
	handler := handlers.NewAuthHandler(service)
	authMW := authmw.NewAuthMiddleware(verifier)
	router := httpadapter.NewRouter(cfg, handler, authMW.Handler)

	if nc != nil {
		verifyHandler := natsadapter.NewVerifyHandler(verifier)
		_ = verifyHandler.Subscribe(nc, cfg.NATSVerifySubject, cfg.AppName)
	}

	e := echo.New()
	router.Setup(e)

	return &App{cfg: cfg, logger: lg, db: db, natsConn: nc, sessions: sessionRepo, echo: e}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.sweepExpiredSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.echo.Shutdown(shutdownCtx)
	}()
	go func() {
		errCh <- a.echo.Start(fmt.Sprintf("%s:%s", a.cfg.HTTPHost, a.cfg.HTTPPort))
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// sweepExpiredSessions periodically deletes expired session rows. Revocation
// itself never depends on the sweep; expiry is checked live on every refresh.
func (a *App) sweepExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SessionSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := a.sessions.DeleteExpired(ctx)
			if err != nil {
				a.logger.Warn().Err(err).Msg("expired session sweep failed")
				continue
			}
			if count > 0 {
				a.logger.Info().Int64("deleted", count).Msg("expired sessions removed")
			}
		}
	}
}

func (a *App) Close() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func buildDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

func loggerForGorm(cfg *config.Config) logger.Interface {
	level := logger.Silent
	switch cfg.AppEnv {
	case "local":
		level = logger.Info
	default:
		level = logger.Warn
	}
	return logger.Default.LogMode(level)
}
