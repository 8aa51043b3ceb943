// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config
//
// 분석 파이프라인 실행에 필요한 모든 설정 값을 보관하는 구조체.
// 모든 값은 프로세스 시작 시점에 Load() 에 의해 초기화되며,
// 이후에는 변경되지 않는 불변(read-only) 설정들이다.
//
// 우선순위: 기본값 < YAML 파일(FLAWSTRAIL_CONFIG 또는 --config) < 환경변수.
// 데이터셋이 로컬에 있으면 env 없이도 기본값만으로 돌아가야 한다.
type Config struct {

	// ---------------------------
	// 입력 데이터 (CloudTrail 샤드)
	// ---------------------------

	ShardDir      string `yaml:"shard_dir"`       // 샤드 디렉토리 (기본: ".")
	ShardPattern  string `yaml:"shard_pattern"`   // 샤드 파일명 패턴 (인덱스 1개를 받는 fmt 패턴)
	ShardMaxIndex int    `yaml:"shard_max_index"` // 샤드 인덱스 상한 (0..N, 기본 19)

	// ---------------------------
	// AWS / S3 미러 (선택)
	// ---------------------------
	// S3Bucket 이 비어 있으면 미러 단계는 건너뛴다.
	// 데이터셋이 S3 에 공개되어 있을 때 로컬 캐시를 채우는 용도.

	AWSRegion    string        `yaml:"aws_region"`
	S3Bucket     string        `yaml:"s3_bucket"`
	S3Prefix     string        `yaml:"s3_prefix"`
	S3Timeout    time.Duration `yaml:"s3_timeout"`     // 각 S3 시도당 timeout
	S3AppRetries int           `yaml:"s3_app_retries"` // 애플리케이션 레벨 재시도 (SDK retry 는 항상 0)

	// ---------------------------
	// 분석 파라미터
	// ---------------------------

	DailyThreshold    int           `yaml:"daily_threshold"`     // daily summary 포함 최소 이벤트 수
	TopIPs            int           `yaml:"top_ips"`             // IP 프로파일 대상 상위 N
	SharedIPScan      int           `yaml:"shared_ip_scan"`      // 공유 IP 탐색 대상 상위 N
	HourlyMinEvents   int           `yaml:"hourly_min_events"`   // 시간대 분석 포함 최소 이벤트 수
	SessionGap        time.Duration `yaml:"session_gap"`         // 세션 경계 idle gap
	SessionMinEvents  int           `yaml:"session_min_events"`  // 이 값 이하 이벤트 세션은 버림
	SessionMax        int           `yaml:"session_max"`         // actor 당 반환 세션 상한 (시간순 첫 N개)
	SessionMaxActions int           `yaml:"session_max_actions"` // 세션당 액션 목록 상한
	KeyActors         []string      `yaml:"key_actors"`          // 프로파일/에러 분석 대상 actor 목록
	ReconActor        string        `yaml:"recon_actor"`         // 정찰 phase 로 취급할 actor
	ExplosionPrefix   string        `yaml:"explosion_prefix"`    // 대량 공격 phase 날짜 prefix (예: "2019-08-2")
	SignatureAction   string        `yaml:"signature_action"`    // 대량 공격 시그니처 액션 (예: RunInstances)

	// ---------------------------
	// 산출물
	// ---------------------------

	InterchangePath string `yaml:"interchange_path"` // analyze 가 쓰는 JSON 산출물
	ReportPath      string `yaml:"report_path"`      // report 가 쓰는 Markdown

	// ---------------------------
	// LLM (외부 서술 생성 서비스)
	// ---------------------------

	LLMBaseURL   string        `yaml:"llm_base_url"`
	LLMModel     string        `yaml:"llm_model"`
	LLMAPIKey    string        `yaml:"-"` // env 전용. 파일에 쓰지 않는다.
	LLMTimeout   time.Duration `yaml:"llm_timeout"`
	LLMMaxTokens int           `yaml:"llm_max_tokens"`

	// ---------------------------
	// 로깅 / 식별자
	// ---------------------------

	ServiceName string `yaml:"service_name"`
	InstanceID  string `yaml:"-"`
	LogLevel    string `yaml:"log_level"`
	LogPretty   bool   `yaml:"log_pretty"`
}

// Load
//
// 기본값 → YAML overlay → 환경변수 순으로 Config 를 구성한다.
// .env 파일이 있으면 먼저 환경변수로 불러온다 (LLM_API_KEY 용).
// 분석 knob 들은 전부 기본값이 있으므로 누락이 fatal 이 아니고,
// 형식이 잘못된 env 만 fail-fast 로 종료한다.
func Load(configPath string) Config {
	// .env 는 있으면 쓰고 없으면 조용히 무시
	_ = godotenv.Load()

	cfg := defaults()

	if configPath == "" {
		configPath = os.Getenv("FLAWSTRAIL_CONFIG")
	}
	if configPath != "" {
		if err := overlayYAML(&cfg, configPath); err != nil {
			log.Fatalf("config file %s: %v", configPath, err)
		}
	}

	// env 가 최우선
	cfg.ShardDir = fallback("SHARD_DIR", cfg.ShardDir)
	cfg.ShardPattern = fallback("SHARD_PATTERN", cfg.ShardPattern)
	cfg.ShardMaxIndex = fallbackInt("SHARD_MAX_INDEX", cfg.ShardMaxIndex)

	cfg.AWSRegion = fallback("AWS_REGION", cfg.AWSRegion)
	cfg.S3Bucket = fallback("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = fallback("S3_PREFIX", cfg.S3Prefix)
	cfg.S3Timeout = fallbackDur("S3_TIMEOUT", cfg.S3Timeout)
	cfg.S3AppRetries = fallbackInt("S3_APP_RETRIES", cfg.S3AppRetries)

	cfg.DailyThreshold = fallbackInt("DAILY_THRESHOLD", cfg.DailyThreshold)
	cfg.SessionGap = fallbackDur("SESSION_GAP", cfg.SessionGap)

	cfg.InterchangePath = fallback("INTERCHANGE_PATH", cfg.InterchangePath)
	cfg.ReportPath = fallback("REPORT_PATH", cfg.ReportPath)

	cfg.LLMBaseURL = fallback("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMModel = fallback("LLM_MODEL", cfg.LLMModel)
	cfg.LLMAPIKey = fallback("LLM_API_KEY", os.Getenv("OPENAI_API_KEY"))
	cfg.LLMTimeout = fallbackDur("LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.LLMMaxTokens = fallbackInt("LLM_MAX_TOKENS", cfg.LLMMaxTokens)

	cfg.LogLevel = fallback("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = fallbackBool("LOG_PRETTY", cfg.LogPretty)
	cfg.InstanceID = hostnameOrPid()

	return cfg
}

// defaults 는 flaws.cloud 데이터셋 기준의 기본값.
// 원본 데이터셋의 상수(샤드 0..19, 100+ 이벤트 일자, 1시간 gap 등)를 따른다.
func defaults() Config {
	return Config{
		ShardDir:      ".",
		ShardPattern:  "flaws_cloudtrail%02d.json.gz",
		ShardMaxIndex: 19,

		AWSRegion:    "us-west-2",
		S3Timeout:    5 * time.Second,
		S3AppRetries: 3,

		DailyThreshold:    100,
		TopIPs:            10,
		SharedIPScan:      20,
		HourlyMinEvents:   1000,
		SessionGap:        time.Hour,
		SessionMinEvents:  5,
		SessionMax:        5,
		SessionMaxActions: 20,
		KeyActors:         []string{"Level5", "Level6", "backup"},
		ReconActor:        "Level5",
		ExplosionPrefix:   "2019-08-2",
		SignatureAction:   "RunInstances",

		InterchangePath: "analyze.json",
		ReportPath:      "forensic_report.md",

		LLMBaseURL:   "https://api.openai.com/v1",
		LLMModel:     "gpt-4-turbo",
		LLMTimeout:   60 * time.Second,
		LLMMaxTokens: 1500,

		ServiceName: "flawstrail",
		LogLevel:    "info",
		LogPretty:   false,
	}
}

func overlayYAML(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

// fallback / fallbackInt / fallbackDur / fallbackBool
//
// 공통 패턴.
// env 가 비어 있으면 현재 값 유지, 형식이 잘못되면 즉시 종료(fail-fast).
// 런타임 중 설정 오류를 겪지 않도록 하기 위한 보호 전략.
func fallback(key, cur string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return cur
}

func fallbackInt(key string, cur int) int {
	v := os.Getenv(key)
	if v == "" {
		return cur
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func fallbackDur(key string, cur time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return cur
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

func fallbackBool(key string, cur bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return cur
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool env %s=%q: %v", key, v, err)
	}
	return b
}

// hostnameOrPid
//
// 이 분석 프로세스를 식별하는 값. 로그 공통 필드에만 쓰인다.
func hostnameOrPid() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return strconv.Itoa(os.Getpid())
}
