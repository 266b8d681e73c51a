package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/client/client"
	"github.com/dmitrijs2005/whattodo/internal/client/config"
	"github.com/dmitrijs2005/whattodo/internal/client/db"
	"github.com/dmitrijs2005/whattodo/internal/client/reconciler"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/mirror"
	"github.com/dmitrijs2005/whattodo/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/whattodo/internal/client/routing"
	"github.com/dmitrijs2005/whattodo/internal/client/services"
	"github.com/dmitrijs2005/whattodo/internal/filex"
	"github.com/dmitrijs2005/whattodo/internal/logging"
)

// syncer is the part of the scheduler the commands use.
type syncer interface {
	Trigger(reason string)
	RunNow(ctx context.Context) (*reconciler.Report, error)
	LastReport() (*reconciler.Report, time.Time)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	closers []io.Closer

	db        *sql.DB
	api       *client.GRPCClient
	auth      services.AuthService
	library   services.LibraryService
	scheduler syncer
	monitor   *routing.Monitor

	mu      sync.Mutex
	session *services.Session

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local database, connects the authority client and builds
// the services. Background loops are not started; see Start.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := filex.EnsureParentDir(c.LogFile); err != nil {
		return nil, err
	}
	logger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      slog.LevelInfo,
	})

	a := &App{
		config:  c,
		logger:  logger.With("module", "cli"),
		closers: []io.Closer{logCloser},
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		a.Close()
		return nil, err
	}
	conn, err := db.Open(ctx, c.DatabasePath)
	if err != nil {
		a.logger.Error(ctx, "error initializing database", "error", err)
		a.Close()
		return nil, err
	}
	a.db = conn
	a.closers = append(a.closers, conn)

	apiClient, err := client.NewAuthorityClient(c.ServerEndpointAddr)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("authority client: %w", err)
	}
	a.api = apiClient
	a.closers = append(a.closers, apiClient)

	a.auth = services.NewAuthService(apiClient, conn, logger)

	rec := reconciler.New(
		outbox.NewSQLiteRepository(conn),
		mirror.NewSQLiteRepository(conn),
		apiClient,
		logger,
		reconciler.Options{Concurrency: c.Concurrency, EntityTimeout: c.EntityTimeout},
	)
	sched := reconciler.NewScheduler(rec, reconciler.NotifierFunc(a.notifyRejected), logger, reconciler.SchedulerOptions{
		Interval:  c.ReconcileInterval,
		RetryBase: c.RetryBaseDelay,
		RetryMax:  c.RetryMaxDelay,
		OnReport:  a.onReport,
	})
	a.scheduler = sched
	a.library = services.NewLibraryService(apiClient, conn, sched, logger)
	a.monitor = routing.NewMonitor(apiClient, logger, func() {
		sched.Trigger(reconciler.ReasonConnectivity)
	})
	return a, nil
}

// Start runs the scheduler and the connectivity watcher until ctx is done.
func (a *App) Start(ctx context.Context) {
	if s, ok := a.scheduler.(*reconciler.Scheduler); ok {
		go s.Start(ctx)
	}
	go a.monitor.Watch(ctx, a.config.OnlineCheckInterval)
	a.scheduler.Trigger(reconciler.ReasonStartup)
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) currentSession() *services.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) setSession(s *services.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	return a.currentSession() != nil
}

func (a *App) mode() routing.Mode {
	if a.monitor == nil {
		return routing.ModeUnknown
	}
	return a.monitor.Mode()
}

func (a *App) notifyRejected(ctx context.Context, r reconciler.Rejection) {
	a.logger.Warn(ctx, "change rejected by authority",
		"entity", string(r.Entity), "id", r.EntityID, "intent", r.Intent.String(), "error", r.Err)
	printlnFn(fmt.Sprintf("! %s %s could not be saved (%s): %v", r.Entity, shortID(r.EntityID), r.Intent, r.Err))
}

func (a *App) onReport(rep *reconciler.Report) {
	if rep.Synced == 0 && rep.Transient == 0 && len(rep.Rejected) == 0 {
		return
	}
	a.logger.Info(context.Background(), "reconcile pass finished",
		"synced", rep.Synced, "skipped", rep.Skipped, "transient", rep.Transient,
		"rejected", len(rep.Rejected), "compacted", rep.Compacted, "duration", rep.Duration)
}
