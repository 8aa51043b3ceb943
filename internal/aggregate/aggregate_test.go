// internal/aggregate/aggregate_test.go
package aggregate

import (
	"fmt"
	"testing"
	"time"

	"flawstrail/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ev 는 테스트용 최소 이벤트 생성기.
func ev(actor, action, date string, hasErr bool) model.Event {
	t, _ := time.Parse("2006-01-02", date)
	e := model.Event{
		Actor:     actor,
		EventName: action,
		Time:      t,
		Date:      date,
		HasError:  hasErr,
	}
	if hasErr {
		e.ErrorCode = "AccessDenied"
	}
	return e
}

func TestErrorRate(t *testing.T) {
	events := []model.Event{
		ev("a", "X", "2019-08-21", true),
		ev("a", "X", "2019-08-21", false),
		ev("a", "X", "2019-08-21", false),
	}
	assert.InDelta(t, 33.33, ErrorRate(events), 0.001)
	assert.Zero(t, ErrorRate(nil))
}

// 동률이 있어도 top-N 순서는 입력의 최초 등장 순서로 안정적이어야 한다.
func TestDailySummaries_StableTopN(t *testing.T) {
	var events []model.Event
	// 같은 날 "alpha" 와 "beta" 가 각 3회, alpha 가 먼저 등장
	for i := 0; i < 3; i++ {
		events = append(events, ev("alpha", "ActA", "2019-08-21", false))
		events = append(events, ev("beta", "ActB", "2019-08-21", false))
	}
	// threshold 를 넘기기 위한 추가 이벤트
	for i := 0; i < 10; i++ {
		events = append(events, ev("gamma", "ActC", "2019-08-21", false))
	}

	got := DailySummaries(events, 10)
	require.Len(t, got, 1)
	require.GreaterOrEqual(t, len(got[0].TopActors), 3)
	assert.Equal(t, "gamma", got[0].TopActors[0].Name)
	assert.Equal(t, "alpha", got[0].TopActors[1].Name) // 동률: 먼저 등장한 쪽이 먼저
	assert.Equal(t, "beta", got[0].TopActors[2].Name)
}

func TestDailySummaries_ThresholdAndOrder(t *testing.T) {
	var events []model.Event
	for i := 0; i < 5; i++ {
		events = append(events, ev("a", "X", "2019-08-20", false)) // 5건: 제외
	}
	for i := 0; i < 20; i++ {
		events = append(events, ev("a", "X", "2019-08-21", false))
	}
	for i := 0; i < 30; i++ {
		events = append(events, ev("a", "X", "2019-08-22", false))
	}

	got := DailySummaries(events, 10)
	require.Len(t, got, 2)
	// total 내림차순
	assert.Equal(t, "2019-08-22", got[0].Date)
	assert.Equal(t, 30, got[0].TotalEvents)
	assert.Equal(t, "2019-08-21", got[1].Date)
}

// 이벤트 0개 actor 는 empty 프로파일 — 에러도 panic 도 아니다.
func TestProfile_EmptyActor(t *testing.T) {
	events := []model.Event{ev("Level6", "X", "2019-08-21", false)}

	p := Profile(events, "nonexistent")
	assert.True(t, p.Empty)
	assert.Equal(t, "nonexistent", p.Actor)
	assert.Zero(t, p.TotalEvents)
}

func TestProfile_Basics(t *testing.T) {
	var events []model.Event
	for i := 0; i < 4; i++ {
		e := ev("Level6", fmt.Sprintf("Act%d", i%2), "2019-08-21", i == 0)
		e.Time = e.Time.Add(time.Duration(i) * time.Hour)
		e.SourceIP = fmt.Sprintf("1.2.3.%d", i%2)
		events = append(events, e)
	}

	p := Profile(events, "Level6")
	require.False(t, p.Empty)
	assert.Equal(t, 4, p.TotalEvents)
	assert.Equal(t, 2, p.UniqueActions)
	assert.Equal(t, 2, p.UniqueIPs)
	assert.InDelta(t, 25.0, p.ErrorRate, 0.001)
}

func TestIPProfiles_SharedInfraFlag(t *testing.T) {
	mk := func(actor, ip string) model.Event {
		e := ev(actor, "X", "2019-08-21", false)
		e.SourceIP = ip
		return e
	}
	events := []model.Event{
		mk("Level5", "9.9.9.9"),
		mk("Level6", "9.9.9.9"),
		mk("Level6", "8.8.8.8"),
	}

	intel := IPProfiles(events, 10)
	assert.Equal(t, 2, intel.TotalUniqueIPs)
	require.Len(t, intel.TopIPs, 2)
	assert.Equal(t, "9.9.9.9", intel.TopIPs[0].IP)
	assert.True(t, intel.TopIPs[0].SharedInfra)
	assert.False(t, intel.TopIPs[1].SharedInfra)
}

func TestSharedIPs(t *testing.T) {
	mk := func(actor, ip string) model.Event {
		e := ev(actor, "X", "2019-08-21", false)
		e.SourceIP = ip
		return e
	}
	events := []model.Event{
		mk("Level6", "9.9.9.9"),
		mk("backup", "9.9.9.9"),
		mk("Level6", "8.8.8.8"),
	}

	shared := SharedIPs(events, 20)
	require.Len(t, shared, 1)
	assert.Equal(t, "9.9.9.9", shared[0].IP)
	assert.Equal(t, []string{"Level6", "backup"}, shared[0].Actors)
}

func TestErrors_SkipsActorsWithoutFailures(t *testing.T) {
	events := []model.Event{
		ev("Level6", "RunInstances", "2019-08-21", true),
		ev("Level6", "RunInstances", "2019-08-21", true),
		ev("Level5", "ListBuckets", "2019-08-21", false),
	}

	sum := Errors(events, 10, []string{"Level5", "Level6"})
	assert.Equal(t, 2, sum.TotalErrors)
	require.Len(t, sum.ByActor, 1) // Level5 는 에러 0건이라 생략
	assert.Equal(t, "Level6", sum.ByActor[0].Actor)
	assert.InDelta(t, 100.0, sum.ByActor[0].ErrorRate, 0.001)
}

func TestHourly_MinEventsAndOrder(t *testing.T) {
	base := time.Date(2019, 8, 21, 10, 0, 0, 0, time.UTC)
	var events []model.Event
	for i := 0; i < 3; i++ { // 10시: 3건 — 제외 (threshold 2 에서 ">" 필요 시 포함)
		e := ev("a", "X", "2019-08-21", false)
		e.Time = base.Add(time.Duration(i) * time.Minute)
		events = append(events, e)
	}
	for i := 0; i < 2; i++ { // 11시: 2건 — 제외
		e := ev("a", "X", "2019-08-21", false)
		e.Time = base.Add(time.Hour + time.Duration(i)*time.Minute)
		events = append(events, e)
	}

	got := Hourly(events, 2)
	require.Len(t, got, 1) // 3 > 2 만 통과
	assert.Equal(t, "2019-08-21 10:00", got[0].Hour)
	assert.Equal(t, 3, got[0].Events)
}

func TestOverview(t *testing.T) {
	events := []model.Event{
		ev("Level5", "List", "2019-08-20", false),
		ev("Level6", "Run", "2019-08-21", false),
		ev("Level6", "Run", "2019-08-21", false),
	}

	st := Overview(events)
	assert.Equal(t, 3, st.TotalEvents)
	assert.Equal(t, "2019-08-20 to 2019-08-21", st.DateRange)
	assert.Equal(t, 2, st.UniqueActors)
	assert.Equal(t, "2019-08-21", st.PeakDay)
	assert.Equal(t, 2, st.PeakDayEvents)
}
