package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roomify/logger"
)

// Config represents the MongoDB configuration.
type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
}

type MongoManager struct {
	mu        sync.RWMutex
	db        *mongo.Database
	readyCh   chan struct{} // closed once, on first successful connect
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = MongoManager{readyCh: make(chan struct{})}

func Manager() *MongoManager { return &globalMgr }

// GetDB returns the active database handle. Callers must have waited on
// WaitReady (or be running after boot).
func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		panic("mongo not initialized, call StartAsync + WaitReady first")
	}
	return globalMgr.db
}

// StartAsync runs until ctx is done; closes readyCh on the first successful
// connect and keeps reconnecting with exponential backoff if the connection
// drops.
func StartAsync(ctx context.Context, cfg *Config) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			// connect phase, with backoff + jitter
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				db, err := connect(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.db = db
					globalMgr.mu.Unlock()

					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					break
				}

				globalMgr.lastErr.Store(err)
				logger.Warnf("[mgo] connect failed: %v", err)

				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
				sleep := backoff - jitter/2

				timer := time.NewTimer(sleep)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// health-check phase; fall back to the connect phase after
			// failThresh consecutive ping failures
			fail := 0
			ticker := time.NewTicker(healthEvery)
			reconnect := false
			for !reconnect {
				select {
				case <-ctx.Done():
					ticker.Stop()
					globalMgr.mu.Lock()
					if globalMgr.db != nil {
						_ = globalMgr.db.Client().Disconnect(context.Background())
						globalMgr.db = nil
					}
					globalMgr.mu.Unlock()
					return
				case <-ticker.C:
					globalMgr.mu.RLock()
					db := globalMgr.db
					globalMgr.mu.RUnlock()
					if db == nil {
						reconnect = true
						break
					}
					pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
					err := db.Client().Ping(pingCtx, nil)
					cancel()
					if err != nil {
						fail++
						logger.Warnf("[mgo] ping failed (%d/%d): %v", fail, failThresh, err)
						if fail >= failThresh {
							reconnect = true
						}
					} else {
						fail = 0
					}
				}
			}
			ticker.Stop()
		}
	}()
}

// WaitReady blocks until the first successful connect, or ctx expiry.
func WaitReady(ctx context.Context) error {
	select {
	case <-globalMgr.readyCh:
		return nil
	case <-ctx.Done():
		if err, ok := globalMgr.lastErr.Load().(error); ok && err != nil {
			return errors.Wrap(err, "mongo not ready")
		}
		return ctx.Err()
	}
}

func connect(ctx context.Context, cfg *Config) (*mongo.Database, error) {
	if cfg.Uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.Uri)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(connCtx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(connCtx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}
	return cli.Database(cfg.Database), nil
}
