// internal/report/report.go
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flawstrail/internal/interchange"
	"flawstrail/internal/llm"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// report 패키지
// ------------------------------------------------------------
// 산출물 문서(interchange.Document)를 markdown 보고서로 조립한다.
//
// 섹션 순서는 고정: 공격 서술 → 행동 비교 → 타임라인 → 통계 부록.
// LLM 이 채우는 것은 앞 3개 섹션의 본문뿐이고, 문서 골격과 통계는
// 전부 산출물에서 결정적으로 나온다. BuildLocal 은 LLM 없이
// 골격 + 통계만으로 보고서를 만든다 (오프라인/키 없는 환경용).

// 섹션 제목과 그에 대응하는 산출물 내 프롬프트 키.
var sections = []struct {
	Title     string
	PromptKey string
}{
	{"Attack Narrative", "narrative"},
	{"Behavioral Comparison", "user_comparison"},
	{"Attack Timeline", "timeline"},
}

// Build 는 LLM 으로 서술 섹션을 채운 전체 보고서를 만든다.
// 섹션 하나가 실패해도 보고서 전체를 버리지 않는다 — 해당
// 섹션만 실패 사유를 남기고 계속 간다 (호출당 과금이므로
// 성공한 섹션을 날리는 쪽이 더 비싸다).
func Build(ctx context.Context, doc *interchange.Document, client llm.Client) (string, error) {
	var sb strings.Builder
	writeHeader(&sb, doc)

	for _, sec := range sections {
		sb.WriteString("## " + sec.Title + "\n\n")

		p, ok := promptText(doc, sec.PromptKey)
		if !ok {
			sb.WriteString("_Section unavailable: prompt missing from analysis output._\n\n")
			continue
		}

		text, err := client.Complete(ctx, p)
		if err != nil {
			log.Warn().Err(err).Str("section", sec.Title).Msg("서술 생성 실패, 섹션 건너뜀")
			sb.WriteString(fmt.Sprintf("_Section unavailable: %v_\n\n", err))
			continue
		}
		sb.WriteString(strings.TrimSpace(text) + "\n\n")
	}

	writeStatistics(&sb, doc)
	return sb.String(), nil
}

// BuildLocal 은 LLM 없이 골격 + 통계만으로 보고서를 만든다.
func BuildLocal(doc *interchange.Document) string {
	var sb strings.Builder
	writeHeader(&sb, doc)

	for _, sec := range sections {
		sb.WriteString("## " + sec.Title + "\n\n")
		sb.WriteString("_Narrative generation skipped (local mode)._\n\n")
	}

	writeStatistics(&sb, doc)
	return sb.String()
}

// ------------------------------------------------------------
// 골격
// ------------------------------------------------------------

func writeHeader(sb *strings.Builder, doc *interchange.Document) {
	sb.WriteString("# CloudTrail Forensic Analysis Report\n\n")
	sb.WriteString("Generated: " + time.Now().UTC().Format("2006-01-02 15:04 UTC") + "\n\n")

	stats := mapAt(doc, "statistics")
	if stats == nil {
		return
	}
	sb.WriteString(fmt.Sprintf("- **Total events:** %s\n", humanize.Comma(intAt(stats, "total_events"))))
	sb.WriteString(fmt.Sprintf("- **Date range:** %s\n", strAt(stats, "date_range")))
	sb.WriteString(fmt.Sprintf("- **Unique users:** %d\n", intAt(stats, "unique_users")))
	sb.WriteString(fmt.Sprintf("- **Unique source IPs:** %s\n", humanize.Comma(intAt(stats, "unique_ips"))))
	sb.WriteString("\n")
}

func writeStatistics(sb *strings.Builder, doc *interchange.Document) {
	sb.WriteString("## Statistical Appendix\n\n")

	stats := mapAt(doc, "statistics")
	if stats != nil {
		sb.WriteString(fmt.Sprintf("Peak day: **%s** with %s events.\n\n",
			strAt(stats, "peak_day"), humanize.Comma(intAt(stats, "peak_day_events"))))

		if top := mapAt(stats, "top_users"); top != nil {
			sb.WriteString("### Top Users\n\n")
			writeHist(sb, top)
		}
		if top := mapAt(stats, "top_actions"); top != nil {
			sb.WriteString("### Top Actions\n\n")
			writeHist(sb, top)
		}
	}

	if an := mapAt(doc, "anomalies"); an != nil {
		sb.WriteString("### Anomalous Days\n\n")
		sb.WriteString(fmt.Sprintf("Daily mean %.1f, stddev %.1f, threshold (μ+3σ) %.1f.\n\n",
			floatAt(an, "daily_mean"), floatAt(an, "daily_stddev"), floatAt(an, "threshold")))
		if days, ok := an.Get("days"); ok {
			if arr, ok := days.([]any); ok && len(arr) > 0 {
				sb.WriteString("| Date | Events | σ-distance |\n|---|---|---|\n")
				for _, d := range arr {
					dm, ok := d.(*interchange.Map)
					if !ok {
						continue
					}
					sb.WriteString(fmt.Sprintf("| %s | %s | %.2f |\n",
						strAt(dm, "date"),
						humanize.Comma(intAt(dm, "events")),
						floatAt(dm, "sigma")))
				}
				sb.WriteString("\n")
			}
		}
	}

	if errs := mapAt(doc, "error_analysis"); errs != nil {
		sb.WriteString("### Error Overview\n\n")
		sb.WriteString(fmt.Sprintf("%s errors overall (%.2f%% of all events).\n\n",
			humanize.Comma(intAt(errs, "total_errors")), floatAt(errs, "error_rate")))
	}
}

// writeHist 는 히스토그램 Map 을 markdown 리스트로.
func writeHist(sb *strings.Builder, m *interchange.Map) {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		sb.WriteString(fmt.Sprintf("- %s — %s\n", k, humanize.Comma(asInt(v))))
	}
	sb.WriteString("\n")
}

// ------------------------------------------------------------
// Document 접근 helper
// ------------------------------------------------------------
// Read 경유 문서의 숫자는 json.Number, 중첩 객체는 *Map 으로
// 들어오고, analyze 직후 메모리 문서는 Go native 타입이다.
// 양쪽 모두를 받아야 해서 느슨하게 변환한다.

func promptText(doc *interchange.Document, key string) (string, bool) {
	ps := mapAt(doc, "prompts")
	if ps == nil {
		return "", false
	}
	v, ok := ps.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func mapAt(m *interchange.Map, key string) *interchange.Map {
	v, ok := m.Get(key)
	if !ok {
		return nil
	}
	sub, ok := v.(*interchange.Map)
	if !ok {
		return nil
	}
	return sub
}

func strAt(m *interchange.Map, key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

func intAt(m *interchange.Map, key string) int64 {
	v, _ := m.Get(key)
	return asInt(v)
}

func floatAt(m *interchange.Map, key string) float64 {
	v, _ := m.Get(key)
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case interface{ Float64() (float64, error) }: // json.Number
		f, _ := t.Float64()
		return f
	}
	return 0
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case interface{ Int64() (int64, error) }: // json.Number
		n, _ := t.Int64()
		return n
	}
	return 0
}
