// cmd/flawstrail/commands/validate.go
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"flawstrail/internal/aggregate"
	"flawstrail/internal/model"
	"flawstrail/internal/normalize"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "분석 전 데이터셋 상태 점검 (샤드 존재/디코드/필드/정규화/집계)",
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		step := func(name string, err error) {
			if err != nil {
				failed++
				fmt.Printf("  [FAIL] %-28s %v\n", name, err)
				return
			}
			fmt.Printf("  [ OK ] %s\n", name)
		}

		fmt.Println("flawstrail preflight:")

		// 1. 샤드 존재
		var present []string
		for i := 0; i <= cfg.ShardMaxIndex; i++ {
			p := filepath.Join(cfg.ShardDir, fmt.Sprintf(cfg.ShardPattern, i))
			if _, err := os.Stat(p); err == nil {
				present = append(present, p)
			}
		}
		if len(present) == 0 {
			step("shard presence", fmt.Errorf("no shards matching %s in %s",
				cfg.ShardPattern, cfg.ShardDir))
			fmt.Printf("\n%d check(s) failed\n", failed)
			return fmt.Errorf("validate: dataset missing")
		}
		step("shard presence", nil)
		fmt.Printf("         %d/%d shards found\n", len(present), cfg.ShardMaxIndex+1)

		// 2. 첫 샤드 gunzip + JSON 디코드
		var records []model.RawEvent
		err := func() error {
			f, err := os.Open(present[0])
			if err != nil {
				return err
			}
			defer f.Close()
			gz, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer gz.Close()
			var doc struct {
				Records []model.RawEvent `json:"Records"`
			}
			if err := json.NewDecoder(gz).Decode(&doc); err != nil {
				return err
			}
			records = doc.Records
			return nil
		}()
		step("first shard decode", err)
		if err != nil || len(records) == 0 {
			if err == nil {
				step("record count", fmt.Errorf("shard decoded but holds 0 records"))
			}
			fmt.Printf("\n%d check(s) failed\n", failed)
			return fmt.Errorf("validate: unreadable dataset")
		}

		// 3. 필수 필드 (첫 레코드 기준 — 샤드 간 스키마는 동일)
		r := records[0]
		fieldErr := func() error {
			switch {
			case r.EventTime == "":
				return fmt.Errorf("eventTime missing")
			case r.EventName == "":
				return fmt.Errorf("eventName missing")
			default:
				return nil
			}
		}()
		step("required fields", fieldErr)

		// 4. 정규화 probe — 어떤 입력도 panic 없이 Event 가 나와야 한다
		probe := records
		if len(probe) > 100 {
			probe = probe[:100]
		}
		events := make([]model.Event, 0, len(probe))
		for _, raw := range probe {
			events = append(events, normalize.Event(raw))
		}
		defaulted := 0
		for _, ev := range events {
			if ev.Defaulted != 0 {
				defaulted++
			}
		}
		step("normalization probe", nil)
		fmt.Printf("         %d/%d probe records needed field defaults\n", defaulted, len(events))

		// 5. 집계 probe
		aggErr := func() error {
			if len(aggregate.DailyCounts(events)) == 0 {
				return fmt.Errorf("no parsable event dates in probe")
			}
			return nil
		}()
		step("aggregation probe", aggErr)

		if failed > 0 {
			fmt.Printf("\n%d check(s) failed\n", failed)
			return fmt.Errorf("validate: %d check(s) failed", failed)
		}
		fmt.Println("\nall checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
