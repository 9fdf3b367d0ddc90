package integration

import (
	"time"

	"parttrack/internal/config"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
	"parttrack/internal/management"
	"parttrack/pkg/models"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestTrackingConfig() config.TrackingConfig {
	return config.TrackingConfig{
		Fallback: config.FallbackConfig{
			OnError: constants.FallbackDeny,
		},
		Reload: config.ReloadConfig{
			IntervalSeconds: 60,
		},
	}
}

func createTestDedupConfig() config.DedupConfig {
	return createTestDedupConfigWithFields([]string{"article_code", "supplier"})
}

func createTestDedupConfigWithFields(fields []string) config.DedupConfig {
	return config.DedupConfig{
		HashAlgorithm: "sha256",
		TTLSeconds:    300,
		OnRedisError:  constants.FallbackAllow,
		FieldsToHash:  fields,
	}
}

func createTestRuleSetRequest(column, operator string, value *string) management.SaveRuleSetRequest {
	return management.SaveRuleSetRequest{
		Rules: []management.SaveRuleRequest{
			{
				LogicOperator: "AND",
				Conditions: []management.SaveConditionRequest{
					{ColumnName: column, Operator: operator, Value: value},
				},
			},
		},
	}
}

func createTestPart(id, articleCode, supplier string) *models.Part {
	return &models.Part{
		ID:          id,
		ArticleCode: articleCode,
		Supplier:    supplier,
	}
}
