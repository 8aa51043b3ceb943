// internal/prompt/prompt_test.go
package prompt

import (
	"strings"
	"testing"

	"flawstrail/internal/interchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProfiles() *interchange.Map {
	return interchange.NewMap(
		interchange.Pair{Key: "Level6", Val: interchange.NewMap(
			interchange.Pair{Key: "total_events", Val: 1200000},
			interchange.Pair{Key: "error_rate", Val: 30.5},
		)},
		interchange.Pair{Key: "Level5", Val: interchange.NewMap(
			interchange.Pair{Key: "total_events", Val: 64},
		)},
	)
}

// 같은 입력 → byte 단위로 같은 프롬프트. 산출물에 저장되는
// 텍스트라 재현성이 곧 diff 가능성이다.
func TestPrompts_ByteReproducible(t *testing.T) {
	profiles := sampleProfiles()
	dailies := []any{
		interchange.NewMap(interchange.Pair{Key: "date", Val: "2019-08-21"}),
	}

	a := Narrative(dailies, profiles)
	b := Narrative(dailies, profiles)
	assert.Equal(t, a, b)

	c := UserComparison(profiles)
	d := UserComparison(profiles)
	assert.Equal(t, c, d)
}

func TestNarrative_EmbedsIndentedJSON(t *testing.T) {
	got := Narrative([]any{}, sampleProfiles())

	assert.Contains(t, got, "Analyze this CloudTrail attack pattern:")
	// 2-space 들여쓰기로 임베드된 프로파일
	assert.Contains(t, got, "  \"Level6\": {")
	assert.Contains(t, got, "\"total_events\": 1200000")
	// 키 순서: Level6 이 Level5 보다 먼저
	assert.Less(t, strings.Index(got, "Level6"), strings.Index(got, "Level5"))
}

func TestNarrative_TruncatesDailies(t *testing.T) {
	var dailies []any
	for i := 0; i < 9; i++ {
		dailies = append(dailies, interchange.NewMap(
			interchange.Pair{Key: "date", Val: "2019-08-0" + string(rune('1'+i))},
		))
	}

	got := Narrative(dailies, sampleProfiles())
	assert.Contains(t, got, "2019-08-05")    // 상위 5개까지만
	assert.NotContains(t, got, "2019-08-06") // 6번째부터 잘림
}

func TestBehavioralSequences_CapsExploitSessions(t *testing.T) {
	mkSession := func(start string) any {
		return interchange.NewMap(interchange.Pair{Key: "start", Val: start})
	}
	recon := []any{mkSession("2019-08-19T09:00:00Z")}
	exploit := []any{
		mkSession("2019-08-21T00:00:00Z"),
		mkSession("2019-08-21T06:00:00Z"),
		mkSession("2019-08-21T12:00:00Z"),
	}

	got := BehavioralSequences("Level5", recon, "Level6", exploit)
	assert.Contains(t, got, "Level5 (Reconnaissance):")
	assert.Contains(t, got, "Level6 (Exploitation):")
	assert.Contains(t, got, "2019-08-21T06:00:00Z")
	assert.NotContains(t, got, "2019-08-21T12:00:00Z") // 앞 2개만
}

func TestQuestion_AppendsToContext(t *testing.T) {
	ctx := QAContext(interchange.NewMap(
		interchange.Pair{Key: "total_events", Val: 42},
	))
	got := Question(ctx, "who was the attacker?")

	require.True(t, strings.HasPrefix(got, ctx))
	assert.Contains(t, got, "QUESTION: who was the attacker?")
}
