package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medreza/honcho-benefit-service/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var postgresMigrations = []struct {
	name string
	sql  string
}{
	{"members table", `
		CREATE TABLE IF NOT EXISTS members (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			association_id VARCHAR(255)
		)
	`},
	{"merchants table", `
		CREATE TABLE IF NOT EXISTS merchants (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			associations TEXT[] NOT NULL DEFAULT '{}'
		)
	`},
	{"benefits table", `
		CREATE TABLE IF NOT EXISTS benefits (
			id VARCHAR(255) PRIMARY KEY,
			merchant_id VARCHAR(255) NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			discount_type VARCHAR(32) NOT NULL,
			discount_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			discount_amount_cents BIGINT NOT NULL DEFAULT 0,
			discount_item VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			valid_until TIMESTAMP WITH TIME ZONE,
			associations TEXT[] NOT NULL DEFAULT '{}',
			per_member_limit INT NOT NULL DEFAULT 0 CHECK (per_member_limit >= 0),
			usage_count INT NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`},
	{"benefits index", `
		CREATE INDEX IF NOT EXISTS idx_benefits_status_created ON benefits(status, created_at DESC)
	`},
	{"benefits associations index", `
		CREATE INDEX IF NOT EXISTS idx_benefits_associations ON benefits USING GIN (associations)
	`},
	{"redemption_records table", `
		CREATE TABLE IF NOT EXISTS redemption_records (
			id VARCHAR(64) PRIMARY KEY,
			member_id VARCHAR(255) NOT NULL,
			merchant_id VARCHAR(255) NOT NULL,
			benefit_id VARCHAR(255),
			association_id VARCHAR(255) NOT NULL,
			benefit_title VARCHAR(255) NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			discount_amount BIGINT NOT NULL DEFAULT 0,
			outcome VARCHAR(32) NOT NULL,
			redeemed_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`},
	{"redemption_records usage index", `
		CREATE INDEX IF NOT EXISTS idx_redemptions_benefit_member ON redemption_records(benefit_id, member_id)
	`},
	{"redemption_records history index", `
		CREATE INDEX IF NOT EXISTS idx_redemptions_member_time ON redemption_records(member_id, redeemed_at DESC)
	`},
	{"validation_attempts table", `
		CREATE TABLE IF NOT EXISTS validation_attempts (
			id VARCHAR(64) PRIMARY KEY,
			member_id VARCHAR(255) NOT NULL,
			merchant_id VARCHAR(255) NOT NULL,
			benefit_id VARCHAR(255),
			outcome VARCHAR(32) NOT NULL,
			reason TEXT NOT NULL,
			device_class VARCHAR(32) NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			extra JSONB,
			attempted_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`},
}

func runPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range postgresMigrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
	}
	return nil
}

func runMongoMigrations(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		repository.CollectionBenefits: {
			{
				Keys: bson.D{
					{Key: "status", Value: 1},
					{Key: "associations", Value: 1},
					{Key: "created_at", Value: -1},
				},
				Options: options.Index().SetName(repository.ActiveBenefitsIndex),
			},
		},
		repository.CollectionRedemptionRecords: {
			{Keys: bson.D{{Key: "benefit_id", Value: 1}, {Key: "member_id", Value: 1}}},
			{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "redeemed_at", Value: -1}}},
		},
		repository.CollectionValidationAttempts: {
			{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "attempted_at", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
