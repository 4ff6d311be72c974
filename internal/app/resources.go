package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	badgeradapter "github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/badger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/memory"
	mongoadapter "github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/mongo"
	redisadapter "github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/redis"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/app/config"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	httpserver "github.com/Abdurahmanit/GroupProject/storefront-service/internal/port/http"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/service"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// resources tracks the external connections opened while wiring, so they can be
// released in reverse order on shutdown or on a failed start.
type resources struct {
	log     logger.Logger
	closers []closer
	redis   *goredis.Client
}

func (r *resources) add(name string, fn func(context.Context) error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

func (r *resources) close(ctx context.Context) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(ctx); err != nil {
			r.log.Errorf("Error closing %s: %v", c.name, err)
			continue
		}
		r.log.Infof("%s closed successfully", c.name)
	}
	r.closers = nil
}

func (r *resources) redisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if r.redis != nil {
		return r.redis, nil
	}
	r.log.Info("Initializing Redis client...")
	client, err := redisadapter.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
	}
	r.add("redis", func(context.Context) error { return client.Close() })
	r.redis = client
	r.log.Info("Redis client initialized successfully")
	return client, nil
}

func (r *resources) stateStore(ctx context.Context, cfg *config.Config) (repository.KeyValueStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory, "":
		return memory.NewKeyValueStore(), nil
	case config.StorageBadger:
		store, err := badgeradapter.Open(badgeradapter.Config{
			Path:   cfg.Storage.BadgerPath,
			KeyTTL: cfg.Storage.KeyTTL,
		}, r.log)
		if err != nil {
			return nil, err
		}
		r.add("badger", func(context.Context) error { return store.Close() })
		return store, nil
	case config.StorageRedis:
		client, err := r.redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisadapter.NewStateStore(client, cfg.Storage.KeyTTL), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

type catalogDeps struct {
	source    service.ProductSource
	catalog   httpserver.Catalog
	history   repository.PriceHistoryRepository
	favorites repository.FavoritesStore
	alerts    repository.AlertRepository
}

func seedTable(cfg config.CatalogConfig) (*memory.ProductTable, error) {
	if cfg.SeedFile != "" {
		table, err := memory.LoadProductTable(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog seed %s: %w", cfg.SeedFile, err)
		}
		return table, nil
	}
	return memory.DefaultProductTable()
}

func (r *resources) catalog(ctx context.Context, cfg *config.Config, m *metrics.MetricsManager) (*catalogDeps, error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourceLocal, "":
		table, err := seedTable(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		return &catalogDeps{
			source:    service.NewLocalSource(table, cfg.Catalog.PageSize),
			catalog:   table,
			history:   table,
			favorites: memory.NewFavoritesStore(),
			alerts:    memory.NewAlertRepository(),
		}, nil
	case config.CatalogSourceMongo:
		return r.mongoCatalog(ctx, cfg, m)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

func (r *resources) mongoCatalog(ctx context.Context, cfg *config.Config, m *metrics.MetricsManager) (*catalogDeps, error) {
	r.log.Info("Initializing MongoDB client...")
	client, err := mongoadapter.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
	}
	r.add("mongodb", client.Disconnect)
	r.log.Info("MongoDB client initialized successfully")

	db := client.Database(cfg.MongoDB.Database)
	if err := mongoadapter.EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	products := mongoadapter.NewProductRepository(db, r.log.Named("mongo"))
	history := mongoadapter.NewPriceHistoryRepository(db)

	existing, err := products.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect products collection: %w", err)
	}
	if len(existing) == 0 {
		table, err := seedTable(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		seed, _ := table.ListAll(ctx)
		if err := products.Seed(ctx, seed); err != nil {
			return nil, err
		}
		if err := history.SeedFromProducts(ctx, seed); err != nil {
			return nil, err
		}
		r.log.Infof("Seeded empty catalog with %d products", len(seed))
	}

	var query repository.ProductQueryService = products
	if cfg.ProductCache.Enabled {
		redisClient, err := r.redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		query = service.NewCachedQueryService(query, redisadapter.NewProductQueryCache(redisClient), cfg.ProductCache.TTL, r.log.Named("product_cache"), m)
		r.log.Infof("Product query cache enabled, ttl %s", cfg.ProductCache.TTL)
	}

	return &catalogDeps{
		source:    service.NewRemoteSource(query, cfg.Catalog.PageSize),
		catalog:   products,
		history:   history,
		favorites: mongoadapter.NewFavoriteRepository(db),
		alerts:    mongoadapter.NewAlertRepository(db),
	}, nil
}
