// cmd/flawstrail/commands/ask.go
package commands

import (
	"errors"
	"fmt"
	"os"

	"flawstrail/internal/interchange"
	"flawstrail/internal/llm"
	"flawstrail/internal/prompt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask \"question\"",
	Short: "산출물 통계를 컨텍스트로 자유 질문 1개를 LLM 에 보낸다",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := interchange.Read(cfg.InterchangePath)
		if err != nil {
			if errors.Is(err, interchange.ErrMissing) {
				return fmt.Errorf("산출물 %s 없음 — 'flawstrail analyze' 를 먼저 실행: %w",
					cfg.InterchangePath, err)
			}
			return err
		}

		// 산출물에 저장된 qa_context 를 그대로 재사용한다
		// (analyze 시점의 통계와 질의 시점의 통계가 어긋나지 않도록).
		ctxBlock := ""
		if ps, ok := doc.Get("prompts"); ok {
			if pm, ok := ps.(*interchange.Map); ok {
				if v, ok := pm.Get("qa_context"); ok {
					ctxBlock, _ = v.(string)
				}
			}
		}
		if ctxBlock == "" {
			return fmt.Errorf("산출물에 qa_context 가 없음 — analyze 를 다시 실행")
		}

		client, err := llm.New(cfg, mtr)
		if err != nil {
			return err
		}
		answer, err := client.Complete(cmd.Context(), prompt.Question(ctxBlock, args[0]))
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
