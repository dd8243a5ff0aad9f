package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/auth"
	authPostgres "github.com/kidsafe/access-management/internal/auth/postgres"
	"github.com/kidsafe/access-management/internal/authorization"
	authzPostgres "github.com/kidsafe/access-management/internal/authorization/postgres"
	"github.com/kidsafe/access-management/internal/child"
	childPostgres "github.com/kidsafe/access-management/internal/child/postgres"
	"github.com/kidsafe/access-management/internal/core/events"
	"github.com/kidsafe/access-management/internal/gamesession"
	sessionPostgres "github.com/kidsafe/access-management/internal/gamesession/postgres"
	"github.com/kidsafe/access-management/internal/transport/rest"
	"github.com/kidsafe/access-management/internal/user"
	userPostgres "github.com/kidsafe/access-management/internal/user/postgres"
	"github.com/kidsafe/access-management/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	cfg := deps.Config
	lg := deps.Logger
	eventBus := events.NewEventBus(lg)

	// repositories
	authRepo := authPostgres.NewRepository(deps.GormDB)
	userRepo := userPostgres.NewRepository(deps.GormDB)
	childRepo := childPostgres.NewRepository(deps.GormDB)
	grantRepo := authzPostgres.NewRepository(deps.GormDB)
	sessionRepo := sessionPostgres.NewRepository(deps.GormDB)

	// token signing chain
	signer := auth.NewSigner(cfg.Security.TokenSecret)
	tokenGen := auth.NewTokenGenerator(signer, cfg.Security.AccessTokenTTL)

	// services
	authService := auth.NewService(authRepo, tokenGen, cfg.Security.BCryptCost, cfg.Security.RefreshTokenTTL)
	userService := user.NewService(userRepo, cfg.Security.BCryptCost, lg)
	grantService := authorization.NewService(grantRepo, eventBus, lg)
	childService := child.NewService(childRepo, grantService, grantRepo, sessionRepo, child.NewBcryptHasher(cfg.Security.BCryptCost), lg)
	sessionService := gamesession.NewService(sessionRepo, childService, grantService, eventBus, lg, cfg.Security.GameSessionTTL)

	// handlers
	authHandler := auth.NewHandler(authService, cfg.Security)
	userHandler := user.NewHandler(userService)
	childHandler := child.NewHandler(childService, grantService)
	grantHandler := authorization.NewHandler(grantService)
	sessionHandler := gamesession.NewHandler(sessionService)

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, authHandler, userHandler, childHandler, grantHandler, sessionHandler, lg)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithConfig(config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	router := chi.NewRouter()

	return &Dependencies{
		Config: config,
		Logger: logger.LoggerWrapper(),
		DB:     db,
		GormDB: gormDB,
		Router: router,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the already-open pgx connection so both
// share one pool.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{})
}
