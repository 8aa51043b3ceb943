// internal/report/report_test.go
package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"flawstrail/internal/interchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient 는 프롬프트 앞부분을 되돌려주는 LLM 스텁.
type fakeClient struct {
	fail bool
}

func (f *fakeClient) Complete(_ context.Context, p string) (string, error) {
	if f.fail {
		return "", errors.New("boom")
	}
	head := p
	if i := strings.IndexByte(head, '\n'); i > 0 {
		head = head[:i]
	}
	return "ANSWER<" + head + ">", nil
}

func sampleDoc() *interchange.Document {
	return interchange.NewMap(
		interchange.Pair{Key: "statistics", Val: interchange.NewMap(
			interchange.Pair{Key: "total_events", Val: 1939207},
			interchange.Pair{Key: "date_range", Val: "2017-02-12 to 2020-08-24"},
			interchange.Pair{Key: "unique_users", Val: 12},
			interchange.Pair{Key: "unique_ips", Val: 2077},
			interchange.Pair{Key: "peak_day", Val: "2019-08-21"},
			interchange.Pair{Key: "peak_day_events", Val: 367000},
			interchange.Pair{Key: "top_users", Val: interchange.NewMap(
				interchange.Pair{Key: "Level6", Val: 1200000},
			)},
		)},
		interchange.Pair{Key: "prompts", Val: interchange.NewMap(
			interchange.Pair{Key: "narrative", Val: "P-NARRATIVE"},
			interchange.Pair{Key: "user_comparison", Val: "P-COMPARE"},
			interchange.Pair{Key: "timeline", Val: "P-TIMELINE"},
		)},
	)
}

// 섹션 순서는 고정: 서술 → 행동 비교 → 타임라인 → 통계.
func TestBuild_SectionOrder(t *testing.T) {
	md, err := Build(context.Background(), sampleDoc(), &fakeClient{})
	require.NoError(t, err)

	idx := func(s string) int { return strings.Index(md, s) }
	narrative := idx("## Attack Narrative")
	compare := idx("## Behavioral Comparison")
	timeline := idx("## Attack Timeline")
	stats := idx("## Statistical Appendix")

	require.NotEqual(t, -1, narrative)
	assert.Less(t, narrative, compare)
	assert.Less(t, compare, timeline)
	assert.Less(t, timeline, stats)

	// 각 섹션이 자기 프롬프트로 호출됐는지
	assert.Contains(t, md, "ANSWER<P-NARRATIVE>")
	assert.Contains(t, md, "ANSWER<P-COMPARE>")
	assert.Contains(t, md, "ANSWER<P-TIMELINE>")
}

func TestBuild_HeaderStats(t *testing.T) {
	md, err := Build(context.Background(), sampleDoc(), &fakeClient{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# CloudTrail Forensic Analysis Report"))
	assert.Contains(t, md, "1,939,207") // humanize 된 카운트
	assert.Contains(t, md, "2017-02-12 to 2020-08-24")
}

// LLM 실패는 해당 섹션만 주석 처리하고 보고서는 살아남는다.
func TestBuild_SectionFailureDoesNotAbort(t *testing.T) {
	md, err := Build(context.Background(), sampleDoc(), &fakeClient{fail: true})
	require.NoError(t, err)

	assert.Contains(t, md, "_Section unavailable:")
	assert.Contains(t, md, "## Statistical Appendix")
}

func TestBuildLocal_NoLLM(t *testing.T) {
	md := BuildLocal(sampleDoc())

	assert.Contains(t, md, "## Attack Narrative")
	assert.Contains(t, md, "_Narrative generation skipped (local mode)._")
	assert.Contains(t, md, "Peak day: **2019-08-21**")
	assert.NotContains(t, md, "ANSWER<")
}

// Read 경유 문서(json.Number 값)도 동일하게 렌더링돼야 한다.
func TestBuildLocal_AfterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/doc.json"
	require.NoError(t, interchange.Write(path, sampleDoc()))
	doc, err := interchange.Read(path)
	require.NoError(t, err)

	md := BuildLocal(doc)
	assert.Contains(t, md, "1,939,207")
	assert.Contains(t, md, "Peak day: **2019-08-21**")
}
