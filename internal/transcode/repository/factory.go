package repository

import (
	"context"
	"fmt"

	"transcoding_service/internal/transcode/domain"
	"transcoding_service/pkg/config"
	"transcoding_service/pkg/database"
)

// 支援的 store driver
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Open 依設定連線 status store, 回傳 repo 與關閉連線的函式
func Open(ctx context.Context, cfg config.StoreConfig) (VideoRepo, func(context.Context) error, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		pg := cfg.PostgreSQL
		dsn := pg.URI
		if dsn == "" {
			dsn = database.PostgresDSN(pg.Host, pg.Port, pg.User, pg.Password, pg.Database)
		}
		db, err := database.NewPGConnection(database.Connection{
			ConnectStr:    dsn,
			RetryCount:    pg.RetryCount,
			RetryInterval: database.SecondsOf(pg.RetryInterval),
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return NewVideoRepo(db), closeFn, nil

	case DriverMongo:
		m := cfg.Mongo
		mdb, err := database.NewMongoDB(ctx, database.Connection{
			ConnectStr:    database.MongoURI(m.URI, m.Host, m.Port, m.User, m.Password),
			RetryCount:    m.RetryCount,
			RetryInterval: database.SecondsOf(m.RetryInterval),
		}, m.Database)
		if err != nil {
			return nil, nil, err
		}
		return NewMongoVideoRepo(mdb.Database), mdb.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// WithCache 設定 redis 時包一層 read-through cache, 否則原樣回傳.
// 回傳的 close 函式負責關閉 redis 連線
func WithCache(ctx context.Context, repo VideoRepo, cfg config.RedisConfig) (VideoRepo, func() error, error) {
	if cfg.Addr == "" && cfg.MasterName == "" {
		return repo, func() error { return nil }, nil
	}
	client, err := database.NewRedisClient(ctx, database.RedisConnection{
		Addr:          cfg.Addr,
		Password:      cfg.Password,
		DB:            cfg.RedisDB,
		MasterName:    cfg.MasterName,
		SentinelAddrs: cfg.SentinelAddrs,
	})
	if err != nil {
		return nil, nil, err
	}
	cache := database.NewRedisRepository[domain.Video](client)
	return NewCachedVideoRepo(repo, cache, cfg.CacheTTL), client.Close, nil
}
