// Package server initializes and runs the application: configuration,
// database and migrations, the DNS provider, mail, the services and the
// HTTP boundary, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsroute53 "github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/server/config"
	"github.com/zoneup/zoneup/internal/server/dns"
	"github.com/zoneup/zoneup/internal/server/dns/route53"
	"github.com/zoneup/zoneup/internal/server/httpapi"
	"github.com/zoneup/zoneup/internal/server/mail"
	"github.com/zoneup/zoneup/internal/server/repositories/repomanager"
	"github.com/zoneup/zoneup/internal/server/services"
	"github.com/zoneup/zoneup/internal/server/tokens"
)

const shutdownTimeout = 10 * time.Second

// App holds the fully constructed server. All dependencies are built here
// at process start and passed down through constructors.
type App struct {
	cfg    *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.Server
}

// NewApp wires the application together from configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	provider, err := newDNSProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	reconciler := dns.NewReconciler(provider, cfg.RootDomain, cfg.DNSTimeoutDuration, logger)

	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		sender = mail.NewNoopSender(logger)
	}

	authority := tokens.NewAuthority(rm)
	userService := services.NewUserService(db, rm, authority, sender, reconciler, cfg, logger)
	domainService := services.NewDomainService(db, rm, reconciler, logger)

	api := httpapi.NewServer(userService, domainService, cfg, logger)

	return &App{cfg: cfg, logger: logger, db: db, api: api}, nil
}

func newDNSProvider(ctx context.Context, cfg *config.Config) (dns.Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return route53.New(awsroute53.NewFromConfig(awsCfg), cfg.Route53ZoneID), nil
}

// Run starts the HTTP server and blocks until a termination signal arrives
// or the server fails on its own.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.cfg.EndpointAddr, "root_domain", app.cfg.RootDomain)
		errCh <- app.api.Start(app.cfg.EndpointAddr)
	}()

	select {
	case sig := <-sigs:
		app.logger.Info(ctx, "shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.api.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "shutdown failed", "error", err)
	}
	return app.db.Close()
}
