package constants

import "time"

const (
	KafkaBatchTimeout  = 10 * time.Millisecond
	KafkaWriteTimeout  = 10 * time.Second
	KafkaMinFetchBytes = 10e3
	KafkaMaxFetchBytes = 10e6
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultPartsTopic     = "part_events"
	DefaultDecisionsTopic = "tracking_decisions"
	DefaultConfigTopic    = "config_events"
)

const (
	DefaultMongoDBName = "parttrack"
)

const (
	DefaultMigrationsPath = "migrations/postgres"
)

const (
	CacheKeyPrefixImport = "import:"
)

const (
	DefaultDedupTTLSeconds = 86400
)

const (
	DefaultReloadIntervalSeconds = 30
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	RoleAdmin   = "admin"
	RolePlanner = "planner"
	RoleViewer  = "viewer"
)

const (
	ImportFormatCSV  = "csv"
	ImportFormatXLSX = "xlsx"
)

const (
	MaxImportFileBytes = 20 << 20
	MaxImportRows      = 50000
)

const (
	DefaultImportBucket = "parts-imports"
)
