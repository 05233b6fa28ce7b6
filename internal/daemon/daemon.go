// Package daemon wires the chore lifecycle service together: configuration,
// storage, repositories, the event bus, the orchestrator, the boundary
// schedulers, the definition watcher, and the HTTP server.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/internal/chore/repositoryimpl"
	"github.com/choreguild/choreguild/internal/clock"
	"github.com/choreguild/choreguild/internal/config"
	"github.com/choreguild/choreguild/internal/event"
	"github.com/choreguild/choreguild/internal/orchestrator"
	"github.com/choreguild/choreguild/internal/recurrence"
	"github.com/choreguild/choreguild/internal/server"
	"github.com/choreguild/choreguild/internal/stats"
	"github.com/choreguild/choreguild/pkg/clog"
	"github.com/choreguild/choreguild/pkg/panicerr"
	"github.com/choreguild/choreguild/pkg/storage"
)

// Daemon is the long-running chore lifecycle service.
type Daemon struct {
	env      *config.Env
	loc      *time.Location
	defRepo  chore.DefinitionRepository
	orch     *orchestrator.Orchestrator
	bus      *event.EventBus
	evLogger *event.EventLogger
	server   *server.Server
}

// New builds the daemon from environment configuration.
func New(ctx context.Context) (*Daemon, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	setupLogger(env)

	loc, err := env.Location()
	if err != nil {
		return nil, err
	}

	store, err := newStorage(ctx, env)
	if err != nil {
		return nil, err
	}

	bus, err := event.NewEventBus()
	if err != nil {
		return nil, err
	}
	evLogger, err := event.NewEventLogger(filepath.Join(env.BaseDir, "events"))
	if err != nil {
		return nil, err
	}
	evLogger.Attach(bus)

	defRepo := repositoryimpl.NewDefinitionYAMLRepository(store)
	instRepo := repositoryimpl.NewInstanceYAMLRepository(store)

	recorder := stats.NewMemory()
	ledger := stats.NewPointsLedger()
	orch := orchestrator.New(
		instRepo,
		bus,
		recorder,
		ledger,
		clock.NewSystem(),
		recurrence.NewCalculator(loc),
		orchestrator.WithLockWait(env.LockWait),
	)

	return &Daemon{
		env:      env,
		loc:      loc,
		defRepo:  defRepo,
		orch:     orch,
		bus:      bus,
		evLogger: evLogger,
		server:   server.New(env.HTTPHost, env.HTTPPort, orch, recorder, ledger),
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.bus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := d.bus.Stop(); err != nil {
			slog.Error("failed to stop event bus", "error", err)
		}
	}()

	if err := d.orch.Load(ctx); err != nil {
		return fmt.Errorf("failed to load instances: %w", err)
	}
	if err := d.reloadDefinitions(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { d.runDueDateTicker(ctx) })
	wg.Go(func() { d.runMidnightTimer(ctx) })
	wg.Go(func() { d.watchDefinitions(ctx) })
	wg.Go(func() {
		slog.Info("http server listening", "addr", d.server.Addr())
		if err := d.server.Start(); err != nil {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	})

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	wg.Wait()
	return nil
}

// reloadDefinitions reads the definition document and swaps it into the
// orchestrator, creating instances for newly configured pairs.
func (d *Daemon) reloadDefinitions(ctx context.Context) error {
	defs, err := d.defRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chore definitions: %w", err)
	}
	if err := d.orch.ReplaceDefinitions(ctx, defs); err != nil {
		return err
	}
	slog.InfoContext(ctx, "chore definitions loaded", "count", len(defs))
	return nil
}

// runDueDateTicker fires the due-date boundary pass on a fixed interval.
func (d *Daemon) runDueDateTicker(ctx context.Context) {
	ticker := time.NewTicker(d.env.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.orch.RunBoundaryPass(ctx, orchestrator.TriggerDueDate)
		}
	}
}

// runMidnightTimer fires the midnight boundary pass at each daily rollover
// in the canonical timezone.
func (d *Daemon) runMidnightTimer(ctx context.Context) {
	for {
		now := time.Now().In(d.loc)
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, d.loc)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.orch.RunBoundaryPass(ctx, orchestrator.TriggerMidnight)
		}
	}
}

// watchDefinitions hot-reloads the definition document when the local file
// changes. Non-local storage has no file to watch; edits there require a
// restart.
func (d *Daemon) watchDefinitions(ctx context.Context) {
	if d.env.StorageEnv.Type != "local" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create definitions watcher", "error", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(d.env.DefinitionsFile)
	if err := watcher.Add(dir); err != nil {
		slog.Error("failed to watch definitions directory", "dir", dir, "error", err)
		return
	}
	target := filepath.Base(d.env.DefinitionsFile)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			err := panicerr.SafeContext(d.reloadDefinitions)(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "definition reload failed; keeping previous set", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("definitions watcher error", "error", err)
		}
	}
}

func newStorage(ctx context.Context, env *config.Env) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "local":
		return storage.NewLocalStorage(env.BaseDir)
	case "s3":
		return storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage type %q", env.StorageEnv.Type)
	}
}

func setupLogger(env *config.Env) {
	opts := &slog.HandlerOptions{Level: env.SlogLevel()}
	var handler slog.Handler
	if env.Env == "local" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}
