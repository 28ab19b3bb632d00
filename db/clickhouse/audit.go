// Package clickhouse persists the pricing audit trail: rule executions and
// model predictions. ClickHouse fits the write pattern here: append-only
// high-volume inserts, queried by tenant and time range for analytics.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"repricer/pkg/api"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "repricer",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// AuditStore writes execution and prediction records to ClickHouse.
type AuditStore struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewAuditStore connects to ClickHouse.
func NewAuditStore(cfg *Config) (*AuditStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &AuditStore{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *AuditStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	return s.conn.Close()
}

// InitSchema creates the audit tables when they do not exist.
func (s *AuditStore) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rule_executions (
			id UUID,
			tenant_id String,
			strategy_id UUID,
			strategy_name String,
			product_id String,
			marketplace String,
			original_price Decimal(18, 4),
			final_price Decimal(18, 4),
			confidence Float64,
			rules_applied Array(String),
			safety_checks_passed UInt8,
			warnings Array(String),
			reason String,
			context String,
			evaluated_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(evaluated_at)
		ORDER BY (tenant_id, evaluated_at, product_id)`,
		`CREATE TABLE IF NOT EXISTS model_predictions (
			id UUID,
			tenant_id String,
			model_id UUID,
			model_type String,
			model_version String,
			product_id String,
			marketplace String,
			prediction_value Float64,
			confidence_score Float64,
			feature_count UInt32,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (tenant_id, created_at, model_id)`,
	}
	for _, stmt := range stmts {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit schema: %w", err)
		}
	}
	return nil
}

// RecordExecution appends one rule-execution record. The context snapshot
// is stored as JSON so replays can reconstruct the exact inputs.
func (s *AuditStore) RecordExecution(ctx context.Context, rec api.ExecutionRecord) error {
	snapshot, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context snapshot: %w", err)
	}

	query := `
		INSERT INTO rule_executions (
			id, tenant_id, strategy_id, strategy_name, product_id, marketplace,
			original_price, final_price, confidence, rules_applied,
			safety_checks_passed, warnings, reason, context, evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.conn.AsyncInsert(ctx, query, false,
		rec.ID,
		rec.TenantID,
		rec.StrategyID,
		rec.StrategyName,
		rec.ProductID,
		rec.Marketplace,
		rec.OriginalPrice,
		rec.FinalPrice,
		rec.Confidence,
		rec.RulesApplied,
		boolToUInt8(rec.SafetyChecksPassed),
		rec.Warnings,
		rec.Reason,
		string(snapshot),
		rec.EvaluatedAt,
	)
}

// RecordPrediction appends one model-prediction record.
func (s *AuditStore) RecordPrediction(ctx context.Context, rec api.PredictionRecord) error {
	query := `
		INSERT INTO model_predictions (
			id, tenant_id, model_id, model_type, model_version,
			product_id, marketplace, prediction_value, confidence_score,
			feature_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.conn.AsyncInsert(ctx, query, false,
		rec.ID,
		rec.TenantID,
		rec.ModelID,
		string(rec.ModelRole),
		rec.ModelVersion,
		rec.ProductID,
		rec.Marketplace,
		rec.Prediction,
		rec.Confidence,
		uint32(rec.FeatureCount),
		rec.CreatedAt,
	)
}

// RecentExecutions returns the newest execution records for a tenant,
// optionally filtered by product.
func (s *AuditStore) RecentExecutions(ctx context.Context, tenantID, productID string, limit int) ([]api.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, strategy_id, strategy_name, product_id, marketplace,
			   original_price, final_price, confidence, rules_applied,
			   safety_checks_passed, warnings, reason, context, evaluated_at
		FROM rule_executions
		WHERE tenant_id = ?
	`
	args := []any{tenantID}
	if productID != "" {
		query += " AND product_id = ?"
		args = append(args, productID)
	}
	query += " ORDER BY evaluated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var records []api.ExecutionRecord
	for rows.Next() {
		var rec api.ExecutionRecord
		var passed uint8
		var snapshot string
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.StrategyID, &rec.StrategyName,
			&rec.ProductID, &rec.Marketplace, &rec.OriginalPrice, &rec.FinalPrice,
			&rec.Confidence, &rec.RulesApplied, &passed, &rec.Warnings,
			&rec.Reason, &snapshot, &rec.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		rec.SafetyChecksPassed = passed == 1
		if snapshot != "" {
			if err := json.Unmarshal([]byte(snapshot), &rec.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal context snapshot: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
