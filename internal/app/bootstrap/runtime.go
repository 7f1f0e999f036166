package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/grooming-booking/internal/bookings"
	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// Store backends accepted in STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, idempotency keys disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// repository is the primary booking store plus whatever must be closed with it.
type repository struct {
	repo  bookings.Repository
	pool  *pgxpool.Pool
	label string
}

// buildRepository opens the primary store named by STORE_BACKEND. loadAWS is
// only called for the dynamodb backend.
func buildRepository(ctx context.Context, cfg *appconfig.Config, loadAWS func(context.Context) (aws.Config, error), logger *logging.Logger) (repository, error) {
	switch cfg.StoreBackend {
	case "", StoreMemory:
		logger.Warn("using in-memory booking store; bookings are lost on restart")
		return repository{repo: bookings.NewInMemoryRepository(), label: StoreMemory}, nil

	case StorePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return repository{}, fmt.Errorf("bootstrap: DATABASE_URL required for postgres store")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return repository{}, fmt.Errorf("bootstrap: open postgres: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		if err := pool.Ping(pctx); err != nil {
			pool.Close()
			return repository{}, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		return repository{repo: bookings.NewPostgresRepository(pool), pool: pool, label: StorePostgres}, nil

	case StoreDynamo:
		if loadAWS == nil {
			return repository{}, fmt.Errorf("bootstrap: AWS config required for dynamodb store")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return repository{}, fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return repository{repo: bookings.NewDynamoRepository(client, cfg.BookingsTable), label: StoreDynamo}, nil

	default:
		return repository{}, fmt.Errorf("bootstrap: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
