package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/api"
	"github.com/mattjoyce/arenakernel/internal/config"
	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/journal"
	"github.com/mattjoyce/arenakernel/internal/kernel"
	"github.com/mattjoyce/arenakernel/internal/lock"
	"github.com/mattjoyce/arenakernel/internal/log"
	"github.com/mattjoyce/arenakernel/internal/notify"
	"github.com/mattjoyce/arenakernel/internal/storage"
	"github.com/mattjoyce/arenakernel/internal/work"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the kernel daemon in the foreground",
	Long: `Start the kernel with the configured number of arenas.

On start the snapshot at state.location is restored when restore_on_start
is set. SIGINT or SIGTERM drains outstanding tasks, stops the workers and
saves the snapshot when save_on_stop is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
		log.WithComponent("main").Info("arenakernel starting", "version", currentVersionInfo().Version, "config", path)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

// runDaemon boots every component, then runs until ctx is cancelled or a
// component fails. Cancelling ctx only triggers shutdown; boot never reads it.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	logger := log.WithComponent("main")
	boot := context.Background()

	pidLock, err := lock.Acquire(cfg.Service.PIDFile)
	if err != nil {
		return fmt.Errorf("acquire PID lock %s: %w", cfg.Service.PIDFile, err)
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	bus := events.NewBus(log.WithComponent("events"), cfg.Kernel.EventBuffer)
	k, err := kernel.New(kernel.Options{
		Arenas:       cfg.Kernel.Arenas,
		PollInterval: cfg.Kernel.PollInterval,
		Retain:       cfg.Kernel.Retain,
		Logger:       log.Get(),
		Bus:          bus,
	})
	if err != nil {
		return err
	}

	if cfg.State.RestoreOnStart {
		switch err := k.LoadState(boot, cfg.State.Location); {
		case err == nil:
			logger.Info("arena state restored", "location", cfg.State.Location)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("no saved arena state", "location", cfg.State.Location)
		default:
			return fmt.Errorf("restore state: %w", err)
		}
	}

	if cfg.Journal.Enabled {
		db, err := storage.OpenSQLite(boot, cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()

		recorder := journal.NewRecorder(db, k.InstanceID(), log.WithComponent("journal"))
		if cfg.Journal.Retention > 0 {
			if n, err := recorder.Prune(boot, cfg.Journal.Retention); err != nil {
				logger.Warn("journal prune failed", "error", err)
			} else if n > 0 {
				logger.Info("journal pruned", "removed", n)
			}
		}
		recorder.Attach(bus)
		defer recorder.Detach()
		logger.Info("journal enabled", "path", cfg.Journal.Path)
	}

	if cfg.Notify.Enabled {
		opts, err := redis.ParseURL(cfg.Notify.RedisURL)
		if err != nil {
			return fmt.Errorf("parse notify redis_url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		fwd := notify.NewRedisForwarder(rdb, cfg.Notify.Namespace, k.InstanceID(), log.WithComponent("notify"))
		fwd.Attach(bus)
		defer fwd.Detach()
		logger.Info("event forwarding enabled", "channel", fwd.Channel())
	}

	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()
	errCh := make(chan error, 1)

	if cfg.API.Enabled {
		server := api.New(api.Config{
			Listen:        cfg.API.Listen,
			APIKey:        cfg.API.Auth.APIKey,
			StateLocation: cfg.State.Location,
		}, k, work.Builtins(), bus, log.WithComponent("api"))
		go func() {
			if err := server.Start(serveCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
	}

	if err := k.Run(); err != nil {
		return err
	}
	logger.Info("arenakernel running", "arenas", k.ArenaCount(), "instance_id", k.InstanceID())

	var failure error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case failure = <-errCh:
		logger.Error("component failed", "error", failure)
	}

	shutdown(k, cfg)
	cancelServe()
	return failure
}

// shutdown drains and stops k, then saves its arenas when configured.
func shutdown(k *kernel.Kernel, cfg *config.Config) {
	logger := log.WithComponent("main")

	// A kernel stopped through the API has nobody to drain its queue.
	if k.Running() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Kernel.ShutdownTimeout)
		if err := k.Drain(drainCtx); err != nil {
			logger.Warn("shutdown with tasks outstanding", "error", err)
		}
		cancel()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Kernel.ShutdownTimeout)
	defer cancel()
	if err := k.Stop(stopCtx); err != nil {
		logger.Error("kernel did not stop cleanly", "error", err)
		return
	}

	if cfg.State.SaveOnStop {
		if err := k.SaveState(stopCtx, cfg.State.Location); err != nil {
			logger.Error("failed to save arena state", "location", cfg.State.Location, "error", err)
			return
		}
		logger.Info("arena state saved", "location", cfg.State.Location)
	}
	logger.Info("arenakernel stopped")
}
