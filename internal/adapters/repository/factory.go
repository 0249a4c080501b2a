package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/okian/league/pkg/logger"
)

// Open builds the backend named by backend. Unless disabled with
// WithInstrumentation(false), the result records operation metrics.
func Open(ctx context.Context, backend string, opts ...Option) (Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.Named("store." + backend)

	var (
		st  Store
		err error
	)
	switch backend {
	case BackendMemory:
		st = NewMemoryStore()
	case BackendJSON:
		st, err = NewFileStore(o.dataDir, log)
	case BackendDuckDB:
		st, err = NewDuckDBStore(ctx, o.dbPath, log)
	case BackendBadger:
		st, err = NewBadgerStore(o.badgerDir, log)
	case BackendGist:
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: defaultHTTPTimeout}
		}
		var gs *GistStore
		if gs, err = NewGistStore(o.gistID, o.githubToken, o.gistAPIURL, client, log); err == nil {
			gs.SetCacheTTL(o.gistTTL)
			st = gs
		}
	case BackendRedis:
		st, err = openRedis(ctx, o, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}

	log.Debug(ctx, "storage backend opened")
	if o.instrument {
		st = Instrument(st, backend, log)
	}
	return st, nil
}

func openRedis(ctx context.Context, o options, log logger.Logger) (Store, error) {
	client, owned := o.redisClient, false
	if client == nil {
		if o.redisAddr == "" {
			return nil, fmt.Errorf("%w: redis backend requires an address", ErrInvalidOptions)
		}
		client = redis.NewClient(&redis.Options{
			Addr:     o.redisAddr,
			Password: o.redisPassword,
			DB:       o.redisDB,
		})
		owned = true
	}
	st, err := NewRedisStore(ctx, client, o.redisPrefix, log)
	if err != nil {
		if owned {
			_ = client.Close()
		}
		return nil, err
	}
	st.owned = owned
	return st, nil
}
