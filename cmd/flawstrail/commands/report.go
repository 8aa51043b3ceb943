// cmd/flawstrail/commands/report.go
package commands

import (
	"errors"
	"fmt"
	"os"

	"flawstrail/internal/interchange"
	"flawstrail/internal/llm"
	"flawstrail/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var reportLocal bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "산출물에서 markdown 포렌식 보고서 생성",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := interchange.Read(cfg.InterchangePath)
		if err != nil {
			if errors.Is(err, interchange.ErrMissing) {
				return fmt.Errorf("산출물 %s 없음 — 'flawstrail analyze' 를 먼저 실행: %w",
					cfg.InterchangePath, err)
			}
			return err
		}

		var md string
		if reportLocal {
			md = report.BuildLocal(doc)
		} else {
			client, err := llm.New(cfg, mtr)
			if err != nil {
				return fmt.Errorf("%w (LLM 없이 만들려면 --local)", err)
			}
			md, err = report.Build(cmd.Context(), doc, client)
			if err != nil {
				return err
			}
		}

		if err := os.WriteFile(cfg.ReportPath, []byte(md), 0o644); err != nil {
			return fmt.Errorf("report write %s: %w", cfg.ReportPath, err)
		}
		log.Info().Str("path", cfg.ReportPath).Bool("local", reportLocal).
			Msg("보고서 기록")
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportLocal, "local", false,
		"LLM 호출 없이 통계 골격만으로 보고서 생성")
	rootCmd.AddCommand(reportCmd)
}
