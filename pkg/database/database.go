package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

func InitMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("unable to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	if err := runMongoMigrations(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("unable to run migrations: %w", err)
	}

	return client, db, nil
}

func InitPostgres(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if err := runPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to run migrations: %w", err)
	}

	return pool, nil
}
