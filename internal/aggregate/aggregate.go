// internal/aggregate/aggregate.go
package aggregate

import (
	"math"
	"sort"
	"time"

	"flawstrail/internal/model"
)

// aggregate 패키지
// ------------------------------------------------------------
// 정규화된 이벤트 collection 에 대한 grouped count / rate 연산 모음.
// 모든 연산은 입력을 수정하지 않는 순수 projection 이며,
// 결과는 호출 시마다 새로 계산된다 (영속 상태 없음).
//
// 순서 규약: 모든 상위 N 목록은 count 내림차순 + 동률이면
// "처음 등장한 순서" (stable sort). 같은 입력이면 언제나 같은 출력.
//
// rate 규약: 분모는 항상 해당 그룹(필터된 부분집합)의 크기.
// 전체 대비 비율은 이름에 Overall 이 붙은 것만.

// NameCount 는 히스토그램 한 칸. 삽입 순서가 곧 랭킹이다.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// countBy 는 key 함수 기준 빈도를 "처음 등장한 순서"로 센다.
// 빈 key("") 는 세지 않는다 (sourceIPAddress 없는 레코드 등).
func countBy(events []model.Event, key func(model.Event) string) []NameCount {
	idx := make(map[string]int)
	var out []NameCount
	for _, ev := range events {
		k := key(ev)
		if k == "" {
			continue
		}
		if i, ok := idx[k]; ok {
			out[i].Count++
		} else {
			idx[k] = len(out)
			out = append(out, NameCount{Name: k, Count: 1})
		}
	}
	// stable: 동률은 첫 등장 순서 유지
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func topN(counts []NameCount, n int) []NameCount {
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// round2 — rate 는 % 단위 소수 2자리.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ErrorRate 는 필터된 그룹 내부의 실패 비율(%).
func ErrorRate(events []model.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	n := 0
	for _, ev := range events {
		if ev.HasError {
			n++
		}
	}
	return round2(float64(n) / float64(len(events)) * 100)
}

// Filter 는 조건에 맞는 부분집합을 새 slice 로 돌려준다.
func Filter(events []model.Event, keep func(model.Event) bool) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// ByActor 는 actor 1명의 이벤트.
func ByActor(events []model.Event, actor string) []model.Event {
	return Filter(events, func(ev model.Event) bool { return ev.Actor == actor })
}

// ------------------------------------------------------------
// Daily summary
// ------------------------------------------------------------

type DailySummary struct {
	Date         string      `json:"date"`
	TotalEvents  int         `json:"total_events"`
	UniqueActors int         `json:"unique_users"`
	TopActors    []NameCount `json:"top_users"`   // 상위 3
	TopActions   []NameCount `json:"top_actions"` // 상위 5
	ErrorRate    float64     `json:"error_rate"`
}

// DailySummaries 는 일자별 그룹 중 threshold 초과분만 요약한다.
// 결과는 total 내림차순 (원본이 anomaly 식별용으로 이렇게 정렬했다).
func DailySummaries(events []model.Event, threshold int) []DailySummary {
	groups := groupByDate(events)

	var out []DailySummary
	for _, g := range groups {
		if len(g.events) <= threshold {
			continue
		}
		actors := countBy(g.events, func(ev model.Event) string { return ev.Actor })
		out = append(out, DailySummary{
			Date:         g.date,
			TotalEvents:  len(g.events),
			UniqueActors: len(actors),
			TopActors:    topN(actors, 3),
			TopActions:   topN(countBy(g.events, func(ev model.Event) string { return ev.EventName }), 5),
			ErrorRate:    ErrorRate(g.events),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalEvents > out[j].TotalEvents })
	return out
}

type dateGroup struct {
	date   string
	events []model.Event
}

// groupByDate 는 날짜순(오름차순) 그룹 목록을 돌려준다.
// Date 가 빈 레코드(시간 파싱 실패)는 버킷에 넣지 않는다.
func groupByDate(events []model.Event) []dateGroup {
	idx := make(map[string]int)
	var out []dateGroup
	for _, ev := range events {
		if ev.Date == "" {
			continue
		}
		if i, ok := idx[ev.Date]; ok {
			out[i].events = append(out[i].events, ev)
		} else {
			idx[ev.Date] = len(out)
			out = append(out, dateGroup{date: ev.Date, events: []model.Event{ev}})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date < out[j].date })
	return out
}

// DailyCounts 는 {날짜, 이벤트 수} 만 필요한 호출자용 (탐지기 등).
func DailyCounts(events []model.Event) []NameCount {
	groups := groupByDate(events)
	out := make([]NameCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, NameCount{Name: g.date, Count: len(g.events)})
	}
	return out
}

// ------------------------------------------------------------
// Actor profile
// ------------------------------------------------------------

type ActorProfile struct {
	Actor         string      `json:"username"`
	Empty         bool        `json:"empty"`
	TotalEvents   int         `json:"total_events"`
	FirstSeen     string      `json:"first_seen,omitempty"`
	LastSeen      string      `json:"last_seen,omitempty"`
	UniqueActions int         `json:"unique_actions"`
	TopActions    []NameCount `json:"top_actions"`
	ErrorRate     float64     `json:"error_rate"`
	UniqueIPs     int         `json:"unique_ips"`
	EventsPerDay  float64     `json:"events_per_day"`
}

// Profile 은 actor 1명의 행동 프로파일.
// 이벤트가 0개인 actor 는 Empty 플래그가 켜진 프로파일을 돌려준다
// — 절대 에러가 아니다.
func Profile(events []model.Event, actor string) ActorProfile {
	sub := ByActor(events, actor)
	if len(sub) == 0 {
		return ActorProfile{Actor: actor, Empty: true}
	}

	first, last := timeSpan(sub)
	actions := countBy(sub, func(ev model.Event) string { return ev.EventName })

	days := last.Sub(first).Hours()/24 + 1 // 최소 1일
	return ActorProfile{
		Actor:         actor,
		TotalEvents:   len(sub),
		FirstSeen:     first.Format(time.RFC3339),
		LastSeen:      last.Format(time.RFC3339),
		UniqueActions: len(actions),
		TopActions:    topN(actions, 5),
		ErrorRate:     ErrorRate(sub),
		UniqueIPs:     len(countBy(sub, func(ev model.Event) string { return ev.SourceIP })),
		EventsPerDay:  round2(float64(len(sub)) / math.Floor(days)),
	}
}

// Profiles 는 지정된 actor 들의 프로파일 목록 (입력 순서 유지).
func Profiles(events []model.Event, actors []string) []ActorProfile {
	out := make([]ActorProfile, 0, len(actors))
	for _, a := range actors {
		out = append(out, Profile(events, a))
	}
	return out
}

func timeSpan(events []model.Event) (first, last time.Time) {
	for _, ev := range events {
		if ev.Time.IsZero() {
			continue
		}
		if first.IsZero() || ev.Time.Before(first) {
			first = ev.Time
		}
		if ev.Time.After(last) {
			last = ev.Time
		}
	}
	return first, last
}

// ------------------------------------------------------------
// IP intelligence
// ------------------------------------------------------------

type IPProfile struct {
	IP          string      `json:"ip"`
	Actors      []string    `json:"users"` // 처음 관측된 순서
	Events      int         `json:"events"`
	TopActions  []NameCount `json:"top_actions"` // 상위 3
	SharedInfra bool        `json:"shared_infra"`
}

type IPIntel struct {
	TotalUniqueIPs int         `json:"total_unique_ips"`
	TopIPs         []IPProfile `json:"top_ips"`
}

// IPProfiles 는 이벤트량 기준 상위 N IP 의 프로파일.
// 서로 다른 actor 가 2명 이상 쓴 IP 는 공유 인프라 후보로 플래그.
func IPProfiles(events []model.Event, topIPs int) IPIntel {
	counts := countBy(events, func(ev model.Event) string { return ev.SourceIP })
	intel := IPIntel{TotalUniqueIPs: len(counts)}

	for _, c := range topN(counts, topIPs) {
		sub := Filter(events, func(ev model.Event) bool { return ev.SourceIP == c.Name })
		actors := distinctInOrder(sub, func(ev model.Event) string { return ev.Actor })
		intel.TopIPs = append(intel.TopIPs, IPProfile{
			IP:          c.Name,
			Actors:      actors,
			Events:      c.Count,
			TopActions:  topN(countBy(sub, func(ev model.Event) string { return ev.EventName }), 3),
			SharedInfra: len(actors) > 1,
		})
	}
	return intel
}

type SharedIP struct {
	IP     string   `json:"ip"`
	Actors []string `json:"users"`
	Events int      `json:"events"`
}

// SharedIPs 는 상위 scanN IP 중 여러 actor 가 공유한 것만 추린다.
// (cross-actor correlation: "Level6 과 backup 은 같은 공격자인가" 질문의 근거)
func SharedIPs(events []model.Event, scanN int) []SharedIP {
	counts := topN(countBy(events, func(ev model.Event) string { return ev.SourceIP }), scanN)

	var out []SharedIP
	for _, c := range counts {
		sub := Filter(events, func(ev model.Event) bool { return ev.SourceIP == c.Name })
		actors := distinctInOrder(sub, func(ev model.Event) string { return ev.Actor })
		if len(actors) > 1 {
			out = append(out, SharedIP{IP: c.Name, Actors: actors, Events: c.Count})
		}
	}
	return out
}

func distinctInOrder(events []model.Event, key func(model.Event) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ev := range events {
		k := key(ev)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// ------------------------------------------------------------
// Error summary
// ------------------------------------------------------------

type ActorErrors struct {
	Actor       string      `json:"username"`
	Errors      int         `json:"errors"`
	ErrorRate   float64     `json:"error_rate"`   // 분모: 해당 actor 의 전체 이벤트
	TopFailures []NameCount `json:"top_failures"` // 실패한 액션 상위 3
}

type ErrorSummary struct {
	TotalErrors      int           `json:"total_errors"`
	OverallErrorRate float64       `json:"error_rate"` // 분모: 전체 데이터셋 (문서화된 overall)
	TopErrors        []NameCount   `json:"top_errors"`
	ByActor          []ActorErrors `json:"by_user"`
}

// Errors 는 에러 패턴 요약. actors 에 이벤트가 없는 이름이 있으면
// 해당 항목은 결과에서 빠진다 (원본 규칙).
func Errors(events []model.Event, topErrN int, actors []string) ErrorSummary {
	failed := Filter(events, func(ev model.Event) bool { return ev.HasError })

	sum := ErrorSummary{
		TotalErrors: len(failed),
		TopErrors:   topN(countBy(failed, func(ev model.Event) string { return ev.ErrorCode }), topErrN),
	}
	if len(events) > 0 {
		sum.OverallErrorRate = round2(float64(len(failed)) / float64(len(events)) * 100)
	}

	for _, actor := range actors {
		all := ByActor(events, actor)
		bad := Filter(all, func(ev model.Event) bool { return ev.HasError })
		if len(bad) == 0 {
			continue
		}
		sum.ByActor = append(sum.ByActor, ActorErrors{
			Actor:       actor,
			Errors:      len(bad),
			ErrorRate:   round2(float64(len(bad)) / float64(len(all)) * 100),
			TopFailures: topN(countBy(bad, func(ev model.Event) string { return ev.EventName }), 3),
		})
	}
	return sum
}

// ------------------------------------------------------------
// Hourly breakdown
// ------------------------------------------------------------

type HourlyBucket struct {
	Hour      string  `json:"hour"` // "2019-08-21 14:00"
	Events    int     `json:"events"`
	TopActor  string  `json:"top_user"`
	TopAction string  `json:"top_action"`
	ErrorRate float64 `json:"error_rate"`
}

// Hourly 는 시간 단위(hour-floor) 버킷 중 minEvents 초과분만,
// 시간 오름차순으로 돌려준다. 폭발 구간(hour-by-hour) 분석용.
func Hourly(events []model.Event, minEvents int) []HourlyBucket {
	idx := make(map[string]int)
	var groups []struct {
		key    string
		events []model.Event
	}
	for _, ev := range events {
		if ev.Time.IsZero() {
			continue
		}
		k := ev.Time.Truncate(time.Hour).Format("2006-01-02 15:04")
		if i, ok := idx[k]; ok {
			groups[i].events = append(groups[i].events, ev)
		} else {
			idx[k] = len(groups)
			groups = append(groups, struct {
				key    string
				events []model.Event
			}{k, []model.Event{ev}})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })

	var out []HourlyBucket
	for _, g := range groups {
		if len(g.events) <= minEvents {
			continue
		}
		b := HourlyBucket{
			Hour:      g.key,
			Events:    len(g.events),
			ErrorRate: ErrorRate(g.events),
		}
		if actors := countBy(g.events, func(ev model.Event) string { return ev.Actor }); len(actors) > 0 {
			b.TopActor = actors[0].Name
		}
		if actions := countBy(g.events, func(ev model.Event) string { return ev.EventName }); len(actions) > 0 {
			b.TopAction = actions[0].Name
		}
		out = append(out, b)
	}
	return out
}

// ------------------------------------------------------------
// Global statistics
// ------------------------------------------------------------

type Stats struct {
	TotalEvents   int         `json:"total_events"`
	DateRange     string      `json:"date_range"`
	UniqueActors  int         `json:"unique_users"`
	UniqueIPs     int         `json:"unique_ips"`
	TopActors     []NameCount `json:"top_users"`
	TopActions    []NameCount `json:"top_actions"`
	PeakDay       string      `json:"peak_day"`
	PeakDayEvents int         `json:"peak_day_events"`
}

// Overview 는 Q&A 컨텍스트와 리포트 statistics 블록에 쓰는 전역 요약.
func Overview(events []model.Event) Stats {
	actors := countBy(events, func(ev model.Event) string { return ev.Actor })
	ips := countBy(events, func(ev model.Event) string { return ev.SourceIP })

	st := Stats{
		TotalEvents:  len(events),
		UniqueActors: len(actors),
		UniqueIPs:    len(ips),
		TopActors:    topN(actors, 5),
		TopActions:   topN(countBy(events, func(ev model.Event) string { return ev.EventName }), 5),
	}

	days := groupByDate(events)
	if len(days) > 0 {
		st.DateRange = days[0].date + " to " + days[len(days)-1].date
		peak := days[0]
		for _, d := range days[1:] {
			if len(d.events) > len(peak.events) {
				peak = d
			}
		}
		st.PeakDay = peak.date
		st.PeakDayEvents = len(peak.events)
	}
	return st
}
