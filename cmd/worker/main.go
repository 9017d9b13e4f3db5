// Command worker runs the aforo rebuild queue consumer: an asynq server
// that pops "aforo:rebuild_dataset" tasks off Redis and drives
// orchestrator.Orchestrator.Rebuild for the named dataset.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aforos-core/rilsa-engine/internal/sqliterepo"
	"github.com/aforos-core/rilsa-engine/pkg/lock"
	"github.com/aforos-core/rilsa-engine/pkg/obsmetrics"
	"github.com/aforos-core/rilsa-engine/pkg/orchestrator"
)

// TaskRebuildDataset is the asynq task type this worker registers a
// handler for. The payload is a rebuildPayload.
const TaskRebuildDataset = "aforo:rebuild_dataset"

type rebuildPayload struct {
	DatasetID string `json:"dataset_id"`
}

// NewRebuildTask builds the asynq task enqueued by callers (an API server,
// a CLI, a cron) that want a dataset rebuilt.
func NewRebuildTask(datasetID string) (*asynq.Task, error) {
	payload, err := json.Marshal(rebuildPayload{DatasetID: datasetID})
	if err != nil {
		return nil, fmt.Errorf("marshal rebuild payload for %s: %w", datasetID, err)
	}
	return asynq.NewTask(TaskRebuildDataset, payload), nil
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	sugar := log.Sugar()

	redisURL := getEnv("REDIS_URL", "redis://localhost:6379")
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		sugar.Fatalw("parse REDIS_URL", "err", err)
	}

	lockClientOpt, err := redis.ParseURL(redisURL)
	if err != nil {
		sugar.Fatalw("parse REDIS_URL for lock client", "err", err)
	}
	lockClient := redis.NewClient(lockClientOpt)
	defer lockClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := lockClient.Ping(ctx).Err(); err != nil {
		sugar.Fatalw("connect to redis", "err", err)
	}
	cancel()

	dbPath := getEnv("AFORO_SQLITE_PATH", "aforo.db")
	db, err := sqliterepo.Open(dbPath)
	if err != nil {
		sugar.Fatalw("open sqlite repository", "path", dbPath, "err", err)
	}
	defer db.Close()
	repo := sqliterepo.New(db)

	metrics := obsmetrics.New(prometheus.DefaultRegisterer)

	lockTTL := getEnvDuration("AFORO_LOCK_TTL", 5*time.Minute)
	lockFactory := orchestrator.NewRedisLockFactory(func(datasetID string) *lock.DatasetLock {
		return lock.New(lockClient, datasetID, lockTTL)
	})

	cfg := orchestrator.DefaultConfig()
	cfg.LockTTL = lockTTL
	orch := orchestrator.New(repo, lockFactory, metrics, sugar, cfg, nil)

	concurrency := getEnvInt("AFORO_WORKER_CONCURRENCY", 3)
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"aforo:critical": 6,
			"aforo:default":  3,
			"aforo:low":      1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return time.Duration(1<<uint(n)) * time.Minute
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			sugar.Errorw("task failed", "type", task.Type(), "err", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRebuildDataset, handleRebuildDataset(orch, sugar))

	metricsAddr := getEnv("AFORO_METRICS_ADDR", ":9090")
	metricsServer := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Errorw("metrics server stopped", "err", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(mux); err != nil {
			errChan <- err
		}
	}()

	sugar.Infow("aforo worker ready", "concurrency", concurrency, "lock_ttl", lockTTL, "sqlite_path", dbPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		sugar.Info("shutdown signal received, stopping gracefully")
		server.Shutdown()
	case err := <-errChan:
		sugar.Fatalw("worker server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	sugar.Info("aforo worker stopped")
}

// handleRebuildDataset adapts orchestrator.Orchestrator.Rebuild to an
// asynq.HandlerFunc.
func handleRebuildDataset(orch *orchestrator.Orchestrator, log *zap.SugaredLogger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload rebuildPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal rebuild payload: %w", err)
		}
		if payload.DatasetID == "" {
			return fmt.Errorf("rebuild task missing dataset_id")
		}

		log.Infow("rebuilding dataset", "dataset_id", payload.DatasetID)
		if err := orch.Rebuild(ctx, payload.DatasetID); err != nil {
			log.Errorw("rebuild failed", "dataset_id", payload.DatasetID, "err", err)
			return err
		}
		log.Infow("rebuild complete", "dataset_id", payload.DatasetID)
		return nil
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
