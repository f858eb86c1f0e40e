package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/audit"
	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/database"
	dbaudit "github.com/mrlokans/libris/internal/database/audit"
	"github.com/mrlokans/libris/internal/database/passcodes"
	"github.com/mrlokans/libris/internal/delivery"
	http_controllers "github.com/mrlokans/libris/internal/http"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/scheduler"
	"github.com/mrlokans/libris/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Services are the server-side components shared by `serve` and the admin
// commands.
type Services struct {
	DB       *database.Database
	Accounts *identity.Service
	Sessions *identity.SessionManager
	Audit    *audit.Service
	Tasks    *tasks.Client // nil when the task queue is disabled
	Backend  *backend.Backend

	passcodes *passcodes.Repository
	auditRepo *dbaudit.Repository
	cfg       *config.Config
}

// Open connects to the database and wires the backend. With the task queue
// enabled passcodes are delivered by a worker; otherwise inline.
func Open(cfg *config.Config) (*Services, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessions, err := identity.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	s := &Services{
		DB:        db,
		Accounts:  identity.NewService(db.DB, cfg.Auth),
		Sessions:  sessions,
		passcodes: passcodes.NewRepository(db.DB),
		auditRepo: dbaudit.NewRepository(db.DB),
		cfg:       cfg,
	}
	s.Audit = audit.NewService(s.auditRepo)

	sender := delivery.LogSender{EchoCode: cfg.Passcode.EchoToLog}
	if cfg.Passcode.EchoToLog {
		log.Printf("WARNING: PASSCODE_ECHO_TO_LOG is set, passcodes will appear in the log")
	}

	var dispatcher backend.Dispatcher = delivery.Direct{Sender: sender}
	if cfg.Tasks.Enabled {
		s.Tasks, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		s.Tasks.Register(
			tasks.NewDeliverPasscodeQueue(sender),
			tasks.NewCleanupPasscodesQueue(s.passcodes, utcNow),
			tasks.NewCleanupAuditEventsQueue(s.auditRepo, utcNow),
		)
		dispatcher = tasks.NewPasscodeDispatcher(s.Tasks)
	}

	s.Backend = backend.New(db.DB, s.Accounts, sessions, dispatcher, s.Audit, backend.Config{
		PasscodeTTL:      cfg.Passcode.TTL,
		RegistrationOpen: cfg.Auth.RegistrationOpen,
	})
	return s, nil
}

// Maintenance returns one cleanup pass: expired passcodes and old audit
// events. The work is queued when the task queue is enabled.
func (s *Services) Maintenance() scheduler.Job {
	grace := s.cfg.Passcode.TTL
	days := s.cfg.Maintenance.AuditRetentionDays

	return func(ctx context.Context) error {
		if s.Tasks != nil {
			_, err := s.Tasks.Enqueue(ctx,
				tasks.CleanupPasscodesTask{Grace: grace},
				tasks.CleanupAuditEventsTask{RetentionDays: days},
			)
			return err
		}

		var errs []error
		if _, err := s.passcodes.DeleteExpired(utcNow().Add(-grace)); err != nil {
			errs = append(errs, fmt.Errorf("cleanup passcodes: %w", err))
		}
		if days <= 0 {
			days = tasks.DefaultAuditRetentionDays
		}
		if _, err := s.Audit.DeleteOldEvents(time.Duration(days) * 24 * time.Hour); err != nil {
			errs = append(errs, fmt.Errorf("cleanup audit events: %w", err))
		}
		return errors.Join(errs...)
	}
}

// Close waits for pending audit writes and releases every resource.
func (s *Services) Close() {
	if s.Audit != nil {
		s.Audit.Wait()
	}
	if s.Tasks != nil {
		if err := s.Tasks.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}
	s.Sessions.Close()
	if err := s.DB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener so queued deliveries drain.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Libris data service v%s", version)

	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	services, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer services.Close()

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	if services.Tasks != nil {
		go services.Tasks.Start(bgCtx)
	}

	var maintenance *scheduler.Maintenance
	if cfg.Maintenance.Enabled {
		maintenance = scheduler.NewMaintenance(cfg.Maintenance.Schedule, services.Maintenance())
		if err := maintenance.Start(bgCtx); err != nil {
			log.Fatalf("Failed to start maintenance: %v", err)
		}
	}

	if n, err := services.Accounts.CountAccounts(bgCtx); err == nil && n == 0 {
		log.Printf("No accounts found. Run '%s create-admin' to create an administrator.", os.Args[0])
	}

	limiter := identity.NewRateLimiter(cfg.Auth)
	defer limiter.Stop()

	routerCfg := http_controllers.RouterConfig{
		Backend:     services.Backend,
		Database:    services.DB,
		Sessions:    services.Sessions,
		APIKey:      cfg.Remote.APIKey,
		RateLimiter: limiter,
		Version:     version,
	}
	if services.Tasks != nil {
		routerCfg.TaskQueue = services.Tasks
	}
	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maintenance != nil {
			maintenance.Stop()
		}
		if services.Tasks != nil {
			services.Tasks.Stop(ctx)
		}
		cancelBackground()
	}

	Serve(router, cfg, onShutdown)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
