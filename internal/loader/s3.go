// internal/loader/s3.go
package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"flawstrail/internal/config"
	"flawstrail/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	zlog "github.com/rs/zerolog/log"
)

// S3Mirror 는 공개 버킷에 올라가 있는 CloudTrail 샤드를
// 로컬 샤드 디렉토리로 받아오는 구성 요소이다.
// - 이미 로컬에 있는 샤드는 다시 받지 않는다 (재실행 안전)
// - 모든 GET 은 컨텍스트 기반(timeout + cancel-safe)이며
//   재시도(backoff) 로직을 포함한다.
//
// Retry 정책 단일화
// --------------------------------------------
// AWS SDK v2 기본 retry 와 코드 레벨 retry 가 겹치면
// 예측 불가능한 지연이 생기므로 SDK Retry 는 0으로 고정하고,
// "재시도 횟수"는 오직 애플리케이션 레벨(S3AppRetries)만 사용한다.
type S3Mirror struct {
	cfg     config.Config
	metrics *metrics.Metrics
	client  *s3.Client
}

// NewS3Mirror 는 AWS SDK Config 를 초기화하고 S3 client 를 생성한다.
func NewS3Mirror(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*S3Mirror, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx,
		awsCfgLib.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})

	return &S3Mirror{cfg: cfg, metrics: m, client: client}, nil
}

// Sync 는 기대 인덱스 범위의 샤드 객체를 하나씩 확인해서
// 로컬에 없는 것만 받아온다. 객체가 버킷에 없으면 그냥 건너뛴다
// (로컬 load 와 동일한 missing-shard 정책).
func (s *S3Mirror) Sync(ctx context.Context) error {
	for i := 0; i <= s.cfg.ShardMaxIndex; i++ {
		name := fmt.Sprintf(s.cfg.ShardPattern, i)
		local := filepath.Join(s.cfg.ShardDir, name)

		if _, err := os.Stat(local); err == nil {
			continue // 이미 있음
		}

		key := s.cfg.S3Prefix + name
		if err := s.getWithRetry(ctx, key, local); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// 객체 없음/받기 실패 → 건너뜀. load 단계가 빠진 샤드를 관용한다.
			zlog.Debug().Str("key", key).Err(err).Msg("shard not mirrored")
			continue
		}
		atomic.AddInt64(&s.metrics.S3ObjectsMirroredTotal, 1)
	}
	return nil
}

// getWithRetry
// -----------------------
// S3 객체 하나를 로컬 파일로 받는다.
// - 각 시도는 S3Timeout 의 timeout
// - retry + exponential backoff (최대 2초)
// - shutdown-safe: ctx.Done() 시 즉시 중단
// - 임시 파일에 쓴 뒤 rename (부분 다운로드가 샤드로 보이지 않도록)
func (s *S3Mirror) getWithRetry(ctx context.Context, key, local string) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= s.cfg.S3AppRetries; attempt++ {

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.getObject(ctx, key, local); err == nil {
			return nil
		} else {
			lastErr = err
			atomic.AddInt64(&s.metrics.S3GetErrorsTotal, 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return lastErr
}

// getObject 는 실제 GetObject 1회 호출 + 파일 쓰기를 담당한다.
func (s *S3Mirror) getObject(ctx context.Context, key, local string) error {
	ctx2, cancel := context.WithTimeout(ctx, s.cfg.S3Timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx2, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	tmp := local + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, local)
}
