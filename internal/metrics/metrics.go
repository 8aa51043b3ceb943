package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 파이프라인 한 번의 run 상태를 나타내는 카운터 모음이다.
// run 종료 시 String() 으로 한 번 덤프해서 로그로 남긴다.
type Metrics struct {
	// ======================
	// Loader 지표
	// ======================

	// ShardsFoundTotal
	// - 기대 인덱스 범위(0..N) 중 디스크에 실제로 존재한 샤드 수.
	// - 이 값이 0 이면 run 은 zero-data 로 즉시 실패한다.
	ShardsFoundTotal int64

	// ShardsLoadedTotal
	// - 압축 해제 + 파싱까지 성공해서 레코드가 병합된 샤드 수.
	ShardsLoadedTotal int64

	// ShardsSkippedTotal
	// - 존재했지만 gzip/JSON 오류로 건너뛴 샤드 수.
	// - 이 값이 0 이 아니면 "partial data" run 이다.
	//   zero-data 와 달리 run 을 멈추지 않는다.
	ShardsSkippedTotal int64

	// RecordsParsedTotal
	// - 병합된 원본 레코드 수. 모든 rate 의 "overall" 분모.
	RecordsParsedTotal int64

	// ======================
	// Normalizer 지표
	// ======================

	// IdentityDefaultedTotal
	// - userIdentity 해석이 "Unknown" 으로 후퇴한 레코드 수.
	IdentityDefaultedTotal int64

	// TimeDefaultedTotal
	// - eventTime 파싱 실패로 zero time 이 된 레코드 수.
	// - 이 값이 크면 입력 포맷 자체를 의심해야 한다.
	TimeDefaultedTotal int64

	// ======================
	// S3 미러 지표 (미러 비활성 시 전부 0)
	// ======================

	S3ObjectsMirroredTotal int64 // 로컬로 받아온 샤드 객체 수
	S3GetErrorsTotal       int64 // GetObject 실패 시도 횟수 (retry 포함)

	// ======================
	// LLM 지표
	// ======================

	LLMCallsTotal  int64 // 외부 서술 생성 서비스 호출 수
	LLMErrorsTotal int64 // 실패한 호출 수 (retry 없음이므로 호출당 최대 1)
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(256)

	fmt.Fprintf(&sb, "shards_found_total=%d\n", atomic.LoadInt64(&m.ShardsFoundTotal))
	fmt.Fprintf(&sb, "shards_loaded_total=%d\n", atomic.LoadInt64(&m.ShardsLoadedTotal))
	fmt.Fprintf(&sb, "shards_skipped_total=%d\n", atomic.LoadInt64(&m.ShardsSkippedTotal))
	fmt.Fprintf(&sb, "records_parsed_total=%d\n", atomic.LoadInt64(&m.RecordsParsedTotal))

	fmt.Fprintf(&sb, "identity_defaulted_total=%d\n", atomic.LoadInt64(&m.IdentityDefaultedTotal))
	fmt.Fprintf(&sb, "time_defaulted_total=%d\n", atomic.LoadInt64(&m.TimeDefaultedTotal))

	fmt.Fprintf(&sb, "s3_objects_mirrored_total=%d\n", atomic.LoadInt64(&m.S3ObjectsMirroredTotal))
	fmt.Fprintf(&sb, "s3_get_errors_total=%d\n", atomic.LoadInt64(&m.S3GetErrorsTotal))

	fmt.Fprintf(&sb, "llm_calls_total=%d\n", atomic.LoadInt64(&m.LLMCallsTotal))
	fmt.Fprintf(&sb, "llm_errors_total=%d\n", atomic.LoadInt64(&m.LLMErrorsTotal))

	return sb.String()
}
