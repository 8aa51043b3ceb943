// internal/loader/loader_test.go
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"flawstrail/internal/config"
	"flawstrail/internal/metrics"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeShard 는 테스트 디렉토리에 gzip JSON 샤드 1개를 만든다.
func writeShard(t *testing.T, dir string, index int, eventNames []string) {
	t.Helper()

	records := make([]map[string]any, 0, len(eventNames))
	for _, name := range eventNames {
		records = append(records, map[string]any{
			"eventTime": "2019-08-21T14:00:00Z",
			"eventName": name,
		})
	}
	body, err := json.Marshal(map[string]any{"Records": records})
	require.NoError(t, err)

	path := filepath.Join(dir, fmt.Sprintf("flaws_cloudtrail%02d.json.gz", index))
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write(body)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func testConfig(dir string, maxIndex int) config.Config {
	return config.Config{
		ShardDir:      dir,
		ShardPattern:  "flaws_cloudtrail%02d.json.gz",
		ShardMaxIndex: maxIndex,
	}
}

// 인덱스 0..5 중 {0,2,5} 만 존재 — 존재하는 것만 순서대로 로드.
func TestLoad_SparseShards(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, 0, []string{"A0", "A1"})
	writeShard(t, dir, 2, []string{"B0"})
	writeShard(t, dir, 5, []string{"C0", "C1", "C2"})

	m := metrics.New()
	res, err := Load(context.Background(), testConfig(dir, 5), m)
	require.NoError(t, err)
	require.Len(t, res.Records, 6)
	assert.Empty(t, res.Skipped)

	// 샤드 인덱스 오름차순 + 샤드 내부 원본 순서
	var names []string
	for _, r := range res.Records {
		names = append(names, r.EventName)
	}
	assert.Equal(t, []string{"A0", "A1", "B0", "C0", "C1", "C2"}, names)
	assert.Equal(t, int64(3), m.ShardsLoadedTotal)
	assert.Equal(t, int64(6), m.RecordsParsedTotal)
}

// 손상 샤드는 진단과 함께 건너뛰고 run 은 계속된다.
func TestLoad_CorruptShardSkipped(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, 0, []string{"OK"})

	// gzip 이 아닌 쓰레기 바이트
	bad := filepath.Join(dir, "flaws_cloudtrail01.json.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not gzip at all"), 0o644))

	// gzip 이지만 JSON 이 아님
	f, err := os.Create(filepath.Join(dir, "flaws_cloudtrail02.json.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("{{{"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	m := metrics.New()
	res, err := Load(context.Background(), testConfig(dir, 2), m)
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, "gunzip", res.Skipped[0].Stage)
	assert.Equal(t, "parse", res.Skipped[1].Stage)
	assert.Equal(t, int64(2), m.ShardsSkippedTotal)
}

// 샤드 0개와 레코드 0개는 모두 ErrNoData.
func TestLoad_ZeroData(t *testing.T) {
	m := metrics.New()

	_, err := Load(context.Background(), testConfig(t.TempDir(), 19), m)
	assert.ErrorIs(t, err, ErrNoData)

	dir := t.TempDir()
	writeShard(t, dir, 0, nil) // 샤드는 있지만 레코드 없음
	_, err = Load(context.Background(), testConfig(dir, 0), m)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLoad_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, testConfig(t.TempDir(), 3), metrics.New())
	assert.ErrorIs(t, err, context.Canceled)
}
