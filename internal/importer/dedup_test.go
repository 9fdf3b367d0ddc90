package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parttrack/internal/config"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
)

func TestComputeRowHash(t *testing.T) {
	hasher := NewHasher("sha256")
	fields := []string{"article_code", "supplier"}

	base, err := hasher.ComputeRowHash(map[string]string{"article_code": "ART-1", "supplier": "Acme"}, fields)
	require.NoError(t, err)

	caseFolded, err := hasher.ComputeRowHash(map[string]string{"article_code": " art-1 ", "supplier": "ACME"}, fields)
	require.NoError(t, err)
	assert.Equal(t, base, caseFolded, "hashing must ignore case and padding")

	different, err := hasher.ComputeRowHash(map[string]string{"article_code": "ART-2", "supplier": "Acme"}, fields)
	require.NoError(t, err)
	assert.NotEqual(t, base, different)

	missing, err := hasher.ComputeRowHash(map[string]string{"article_code": "ART-1"}, fields)
	require.NoError(t, err)
	assert.NotEqual(t, base, missing, "a missing column hashes as empty")

	_, err = hasher.ComputeRowHash(map[string]string{"article_code": "ART-1"}, nil)
	assert.Error(t, err)
}

func TestComputeRowHashAlgorithms(t *testing.T) {
	values := map[string]string{"article_code": "ART-1"}
	fields := []string{"article_code"}

	sha, err := NewHasher("sha256").ComputeRowHash(values, fields)
	require.NoError(t, err)
	assert.Len(t, sha, 64)

	md5Hash, err := NewHasher("md5").ComputeRowHash(values, fields)
	require.NoError(t, err)
	assert.Len(t, md5Hash, 32)

	fallback, err := NewHasher("").ComputeRowHash(values, fields)
	require.NoError(t, err)
	assert.Equal(t, sha, fallback)
}

type fakeDedupRepo struct {
	seen    map[string]bool
	err     error
	setKeys []string
}

func newFakeDedupRepo() *fakeDedupRepo {
	return &fakeDedupRepo{seen: make(map[string]bool)}
}

func (f *fakeDedupRepo) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.setKeys = append(f.setKeys, key)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedupRepo) GetCacheSize(ctx context.Context, prefix string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.seen), nil
}

func TestDeduperIsNewRow(t *testing.T) {
	repo := newFakeDedupRepo()
	deduper := NewDeduper(repo, config.DedupConfig{TTLSeconds: 60}, logger.NopLogger())

	values := map[string]string{"article_code": "ART-1", "supplier": "Acme"}

	first, err := deduper.IsNewRow(context.Background(), values)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := deduper.IsNewRow(context.Background(), values)
	require.NoError(t, err)
	assert.False(t, second)

	require.NotEmpty(t, repo.setKeys)
	assert.Contains(t, repo.setKeys[0], constants.CacheKeyPrefixImport)
}

func TestDeduperRedisErrorFallback(t *testing.T) {
	repo := newFakeDedupRepo()
	repo.err = fmt.Errorf("connection refused")

	values := map[string]string{"article_code": "ART-1"}

	deny := NewDeduper(repo, config.DedupConfig{}, logger.NopLogger())
	_, err := deny.IsNewRow(context.Background(), values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate check failed")

	allow := NewDeduper(repo, config.DedupConfig{OnRedisError: constants.FallbackAllow}, logger.NopLogger())
	isNew, err := allow.IsNewRow(context.Background(), values)
	require.NoError(t, err)
	assert.True(t, isNew)
}
