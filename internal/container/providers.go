// Package container wires the billing ledger's repositories, services and
// HTTP server from configuration and owns their lifecycle.
package container

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shivam7053/patient-management-system/internal/application/port"
	"github.com/shivam7053/patient-management-system/internal/application/service"
	"github.com/shivam7053/patient-management-system/internal/auth"
	"github.com/shivam7053/patient-management-system/internal/config"
	"github.com/shivam7053/patient-management-system/internal/export"
	"github.com/shivam7053/patient-management-system/internal/infrastructure/persistence/repository"
	"github.com/shivam7053/patient-management-system/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/shivam7053/patient-management-system/internal/interfaces/http"
	"github.com/shivam7053/patient-management-system/migrations"
	"github.com/shivam7053/patient-management-system/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
	Applied        int
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Bill     port.BillRepository
	Item     port.BillItemRepository
	Payment  port.PaymentRepository
	Patients port.PatientDirectory
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Billing service.BillingService
	Reports service.ReportService
	Export  service.ExportService
}

// MigrationSource returns the configured migrations directory, or the
// embedded schema when none is set.
func MigrationSource(cfg *config.DatabaseConfig) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).RunMigrations(MigrationSource(cfg))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		Applied:        applied,
	}, nil
}

// ProvideRepositories creates all repositories over the shared connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &RepositoryBundle{
		Bill:     repository.NewBillRepository(db.DB, logger),
		Item:     repository.NewBillItemRepository(db.DB, logger),
		Payment:  repository.NewPaymentRepository(db.DB, logger),
		Patients: repository.NewPatientDirectory(db.DB, logger),
	}, nil
}

// ProvideServices creates the application services.
func ProvideServices(
	cfg *config.BillingConfig,
	repos *RepositoryBundle,
	txManager port.TransactionManager,
	logger *zap.Logger,
) (*ServiceBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	svcLogger := &zapLoggerAdapter{logger: logger}

	return &ServiceBundle{
		Billing: service.NewBillingService(
			repos.Bill,
			repos.Item,
			repos.Payment,
			repos.Patients,
			txManager,
			cfg.DefaultCurrency,
			svcLogger,
		),
		Reports: service.NewReportService(
			repos.Bill,
			repos.Payment,
			svcLogger,
			service.WithDefaultDays(cfg.DefaultReportDays),
		),
		Export: service.NewExportService(
			repos.Bill,
			repos.Payment,
			export.NewWriter(logger.Named("export")),
			svcLogger,
		),
	}, nil
}

// ProvideTokenManager creates the bearer token verifier.
func ProvideTokenManager(cfg *config.AuthConfig) (*auth.TokenManager, error) {
	return auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer)
}

// ProvideHTTPServer creates the HTTP server over the services.
func ProvideHTTPServer(
	cfg *config.Config,
	services *ServiceBundle,
	tokens *auth.TokenManager,
	db httpserver.Pinger,
	logger *zap.Logger,
) *httpserver.Server {
	return httpserver.NewServer(
		httpserver.ServerConfig{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
		httpserver.Services{
			Billing: services.Billing,
			Reports: services.Reports,
			Export:  services.Export,
		},
		tokens,
		db,
		&zapLoggerAdapter{logger: logger.Named("http")},
	)
}
