// cmd/flawstrail/commands/root.go
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"flawstrail/internal/config"
	"flawstrail/internal/logger"
	"flawstrail/internal/metrics"

	"github.com/spf13/cobra"
)

// 모든 서브커맨드가 공유하는 프로세스 전역 상태.
// cobra PersistentPreRun 에서 채워진다.
var (
	configPath string
	cfg        config.Config
	mtr        *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "flawstrail",
	Short: "flaws.cloud CloudTrail 데이터셋 포렌식 분석 파이프라인",
	Long: `flawstrail 은 flaws.cloud CTF 의 공개 CloudTrail 로그(gzip JSON 샤드)를
로드/정규화/집계해서 공격 타임라인 산출물(analyze.json)을 만들고,
그 산출물로 포렌식 보고서를 조립하는 CLI 다.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(configPath)
		logger.Init(cfg)
		mtr = metrics.New()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML 설정 파일 경로 (기본: FLAWSTRAIL_CONFIG env)")
}

// Execute 는 시그널 연동 컨텍스트로 루트 커맨드를 실행한다.
// SIGINT/SIGTERM 은 진행 중인 단계(S3 미러, LLM 호출)를 ctx 로 끊는다.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// 로거 초기화 전에 터질 수 있으므로 stderr 직접 사용
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
