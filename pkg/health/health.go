package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckerRegistry distinguishes required dependencies from optional ones.
// A failing required check makes the service unhealthy; a failing optional
// check only degrades it, since the service keeps working without the
// dependency (dedup without Redis, uploads without the archive).
type CheckerRegistry struct {
	required []Checker
	optional []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.required = append(r.required, checker)
}

func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.optional = append(r.optional, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	status := StatusHealthy

	for _, checker := range r.required {
		if !runCheck(ctx, checker, StatusUnhealthy, results) {
			status = StatusUnhealthy
		}
	}
	for _, checker := range r.optional {
		if !runCheck(ctx, checker, StatusDegraded, results) && status == StatusHealthy {
			status = StatusDegraded
		}
	}

	return Health{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

func runCheck(ctx context.Context, checker Checker, failStatus Status, results map[string]CheckResult) bool {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	result := CheckResult{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}
	ok := true
	if err := checker.Check(ctx); err != nil {
		result.Status = failStatus
		result.Message = err.Error()
		ok = false
	}
	results[checker.Name()] = result
	return ok
}

type PostgreSQLChecker struct {
	db *sql.DB
}

func NewPostgreSQLChecker(db *sql.DB) *PostgreSQLChecker {
	return &PostgreSQLChecker{db: db}
}

func (c *PostgreSQLChecker) Name() string {
	return "postgresql"
}

func (c *PostgreSQLChecker) Check(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type MongoDBChecker struct {
	client *mongo.Client
}

func NewMongoDBChecker(client *mongo.Client) *MongoDBChecker {
	return &MongoDBChecker{client: client}
}

func (c *MongoDBChecker) Name() string {
	return "mongodb"
}

func (c *MongoDBChecker) Check(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

type MinIOChecker struct {
	client *minio.Client
	bucket string
}

func NewMinIOChecker(client *minio.Client, bucket string) *MinIOChecker {
	return &MinIOChecker{client: client, bucket: bucket}
}

func (c *MinIOChecker) Name() string {
	return "minio"
}

func (c *MinIOChecker) Check(ctx context.Context) error {
	if _, err := c.client.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("minio bucket check failed: %w", err)
	}
	return nil
}
