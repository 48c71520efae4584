package credentials

import (
	"context"

	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNoToken is returned by Load* when nothing is stored.
var ErrNoToken = autherrors.ErrNoToken

// Store persists the access/refresh pair. Writes are last-write-wins; there
// is no merge between a concurrent Save and Clear.
type Store interface {
	Save(ctx context.Context, access, refresh string) error
	LoadAccess(ctx context.Context) (string, error)
	LoadRefresh(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// NewFromConfig builds the Store selected by cfg.GetStoreBackend().
func NewFromConfig(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreBackendMemory:
		return NewMemoryStore(), nil
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "[credentials.NewFromConfig] failed to connect to redis")
		}
		return NewRedisStore(client, cfg.GetRedisPrefix()), nil
	default:
		return NewFileStore(cfg.GetStorePath(), cfg.GetStoreKeyPath())
	}
}
