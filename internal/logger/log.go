// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"flawstrail/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 프로세스 시작 시 한 번만 호출되는 로거 초기화 함수입니다.
// Config 설정에 따라 '개발자용 화면' 또는 '기계용 JSON 로그'로
// 형태를 바꾸어 설정합니다.
//
// [주요 기능]
//
//  1. 로그 포맷 자동 전환:
//     - 터미널에서 직접 돌릴 때 (LOG_PRETTY=true): 색/정렬 적용된 텍스트
//     - 배치/CI 환경 (LOG_PRETTY=false): JSON 포맷 (수집/검색 위주)
//
//  2. 공통 필드 자동 추가:
//     - 모든 로그에 "service", "instance" 정보가 자동으로 붙습니다.
//
// 분석 CLI 는 run 당 로그 수가 적으므로 샘플링은 두지 않습니다.
// (ingest 서버류와 달리 버릴 로그가 없음)
func Init(cfg config.Config) {

	// 설정된 레벨보다 낮은 중요도의 로그는 아예 출력하지 않는다.
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.LogPretty {
		// 사람이 터미널로 볼 때. 날짜 없이 시간만.
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	} else {
		// 표준 JSON 을 그대로 stderr 로. stdout 은 ask 결과 등
		// 분석 산출물 전용으로 비워 둔다.
		w = os.Stderr
	}

	zlog.Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	// 표준 라이브러리 log 를 쓰는 경로(설정 fail-fast 등)도
	// zerolog 설정을 따르도록 연결.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
