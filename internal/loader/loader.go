// internal/loader/loader.go
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"flawstrail/internal/config"
	"flawstrail/internal/metrics"
	"flawstrail/internal/model"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	zlog "github.com/rs/zerolog/log"
)

// loader 패키지
// ------------------------------------------------------------
// 고정된 번호 체계(flaws_cloudtrail%02d.json.gz, 0..N)를 따르는
// gzip JSON 샤드를 읽어 하나의 레코드 collection 으로 합친다.
//
// 실패 정책 (에러 분류가 핵심):
//   - 샤드 없음      → 건너뜀. 에러 아님.
//   - 샤드 손상      → 건너뜀 + 진단 기록. run 을 멈추지 않음.
//   - 샤드/레코드 0개 → ErrNoData. "분석할 것이 없음"은
//     "일부 입력이 나빴음"과 구분되는 fatal 조건이다.
//
// 순서 보장: 샤드 인덱스 오름차순, 샤드 내부는 원본 순서 유지.

// ErrNoData 는 zero-data 조건. partial data(ShardDiag 존재)와 다르다.
var ErrNoData = errors.New("loader: no shards found or no records parsed")

// ShardDiag 는 건너뛴 샤드 1개의 진단 정보.
type ShardDiag struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Stage string `json:"stage"` // "open" | "gunzip" | "parse"
	Err   string `json:"error"`
}

// Result 는 한 번의 load 결과.
type Result struct {
	Records []model.RawEvent
	Skipped []ShardDiag // 손상 샤드 진단. 비어 있으면 완전한 load.
}

// shardDocument 는 샤드 파일의 최상위 구조.
// 레코드 배열은 고정 키 "Records" 아래에 있다.
type shardDocument struct {
	Records []model.RawEvent `json:"Records"`
}

// Load 는 cfg.ShardDir 에서 인덱스 0..cfg.ShardMaxIndex 의 샤드를
// 순서대로 읽어 병합한다.
func Load(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*Result, error) {
	res := &Result{}
	found := 0

	for i := 0; i <= cfg.ShardMaxIndex; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		path := filepath.Join(cfg.ShardDir, fmt.Sprintf(cfg.ShardPattern, i))

		if _, err := os.Stat(path); err != nil {
			// 샤드 없음 → 조용히 다음 인덱스로
			continue
		}
		found++
		atomic.AddInt64(&m.ShardsFoundTotal, 1)

		records, diag := readShard(i, path)
		if diag != nil {
			res.Skipped = append(res.Skipped, *diag)
			atomic.AddInt64(&m.ShardsSkippedTotal, 1)
			zlog.Warn().
				Int("shard", diag.Index).
				Str("stage", diag.Stage).
				Str("error", diag.Err).
				Msg("shard skipped")
			continue
		}

		res.Records = append(res.Records, records...)
		atomic.AddInt64(&m.ShardsLoadedTotal, 1)
		atomic.AddInt64(&m.RecordsParsedTotal, int64(len(records)))
	}

	if found == 0 || len(res.Records) == 0 {
		return nil, ErrNoData
	}

	zlog.Info().
		Int("shards", found-len(res.Skipped)).
		Int("skipped", len(res.Skipped)).
		Int("records", len(res.Records)).
		Msg("shards loaded")

	return res, nil
}

// readShard 는 샤드 1개를 열고 → gunzip → JSON 파싱한다.
// 어느 단계에서 실패했는지를 diag 에 남긴다 (복구는 caller 몫이 아님,
// 그냥 건너뛴다).
func readShard(index int, path string) ([]model.RawEvent, *ShardDiag) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ShardDiag{Index: index, Path: path, Stage: "open", Err: err.Error()}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, &ShardDiag{Index: index, Path: path, Stage: "gunzip", Err: err.Error()}
	}
	defer gz.Close()

	var doc shardDocument
	if err := json.NewDecoder(gz).Decode(&doc); err != nil {
		return nil, &ShardDiag{Index: index, Path: path, Stage: "parse", Err: err.Error()}
	}

	return doc.Records, nil
}
