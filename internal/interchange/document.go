// internal/interchange/document.go
package interchange

import (
	"errors"
	"fmt"
	"os"

	"flawstrail/internal/aggregate"
	"flawstrail/internal/detect"

	json "github.com/goccy/go-json"
)

// interchange 패키지
// ------------------------------------------------------------
// 한 번의 분석 run 이 계산한 집계/탐지 결과와 프롬프트 텍스트를
// 담는 JSON 산출물. 별도 프로세스(report, 대시보드)가 재계산 없이
// 다시 읽는 용도다.
//
// 계약: Read 한 문서를 계산 없이 다시 Write 하면 byte 단위로
// 동일한 파일이 나와야 한다. 그래서 문서 전체가 삽입 순서를
// 보존하는 Map 으로 표현된다 (ordered.go 참고).

// ErrMissing 은 산출물 파일이 없을 때. 소비 단계(report 등)는
// 이 에러를 받으면 "analyze 를 먼저 실행하라"는 메시지를 낸다.
var ErrMissing = errors.New("interchange: file not found")

// Document 는 run 1회의 전체 산출물.
type Document = Map

// Write 는 문서를 2-space 들여쓰기 JSON 으로 기록한다.
func Write(path string, doc *Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("interchange: marshal: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("interchange: write %s: %w", path, err)
	}
	return nil
}

// Read 는 기록된 문서를 키 순서 보존 상태로 다시 읽는다.
// 파일 없음은 ErrMissing 으로 구분해서 돌려준다 (producer 를
// 먼저 실행해야 하는 상황과 손상된 파일을 구분하기 위함).
func Read(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("interchange: read %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("interchange: parse %s: %w", path, err)
	}
	return &doc, nil
}

// ------------------------------------------------------------
// 집계 구조체 → ordered Map 변환
// ------------------------------------------------------------
// 원본 산출물 포맷은 히스토그램을 {"액션명": 횟수} 객체로 쓴다.
// Go map 으로는 랭킹 순서가 깨지므로 전부 Map 으로 변환한다.

// Hist 는 NameCount slice(랭킹 순)를 JSON 객체로.
func Hist(counts []aggregate.NameCount) *Map {
	m := NewMap()
	for _, c := range counts {
		m.Set(c.Name, c.Count)
	}
	return m
}

func DailySummaryMap(d aggregate.DailySummary) *Map {
	return NewMap(
		Pair{"date", d.Date},
		Pair{"total_events", d.TotalEvents},
		Pair{"unique_users", d.UniqueActors},
		Pair{"top_users", Hist(d.TopActors)},
		Pair{"top_actions", Hist(d.TopActions)},
		Pair{"error_rate", d.ErrorRate},
	)
}

func DailySummariesList(ds []aggregate.DailySummary) []any {
	out := make([]any, 0, len(ds))
	for _, d := range ds {
		out = append(out, DailySummaryMap(d))
	}
	return out
}

func ProfileMap(p aggregate.ActorProfile) *Map {
	m := NewMap(
		Pair{"username", p.Actor},
		Pair{"empty", p.Empty},
		Pair{"total_events", p.TotalEvents},
	)
	if !p.Empty {
		m.Set("first_seen", p.FirstSeen)
		m.Set("last_seen", p.LastSeen)
		m.Set("unique_actions", p.UniqueActions)
		m.Set("top_actions", Hist(p.TopActions))
		m.Set("error_rate", p.ErrorRate)
		m.Set("unique_ips", p.UniqueIPs)
		m.Set("events_per_day", p.EventsPerDay)
	}
	return m
}

// ProfilesMap 은 actor 이름 → 프로파일 객체 (지정 순서 유지).
func ProfilesMap(ps []aggregate.ActorProfile) *Map {
	m := NewMap()
	for _, p := range ps {
		m.Set(p.Actor, ProfileMap(p))
	}
	return m
}

func StatsMap(st aggregate.Stats) *Map {
	return NewMap(
		Pair{"total_events", st.TotalEvents},
		Pair{"date_range", st.DateRange},
		Pair{"unique_users", st.UniqueActors},
		Pair{"unique_ips", st.UniqueIPs},
		Pair{"top_users", Hist(st.TopActors)},
		Pair{"top_actions", Hist(st.TopActions)},
		Pair{"peak_day", st.PeakDay},
		Pair{"peak_day_events", st.PeakDayEvents},
	)
}

func IPIntelMap(ip aggregate.IPIntel) *Map {
	tops := NewMap()
	for _, p := range ip.TopIPs {
		tops.Set(p.IP, NewMap(
			Pair{"users", strs(p.Actors)},
			Pair{"events", p.Events},
			Pair{"top_actions", Hist(p.TopActions)},
			Pair{"shared_infra", p.SharedInfra},
		))
	}
	return NewMap(
		Pair{"total_unique_ips", ip.TotalUniqueIPs},
		Pair{"top_ips", tops},
	)
}

func SharedIPsList(shared []aggregate.SharedIP) []any {
	out := make([]any, 0, len(shared))
	for _, s := range shared {
		out = append(out, NewMap(
			Pair{"ip", s.IP},
			Pair{"users", strs(s.Actors)},
			Pair{"events", s.Events},
		))
	}
	return out
}

func ErrorSummaryMap(es aggregate.ErrorSummary) *Map {
	byActor := NewMap()
	for _, a := range es.ByActor {
		byActor.Set(a.Actor, NewMap(
			Pair{"errors", a.Errors},
			Pair{"error_rate", a.ErrorRate},
			Pair{"top_failures", Hist(a.TopFailures)},
		))
	}
	return NewMap(
		Pair{"total_errors", es.TotalErrors},
		Pair{"error_rate", es.OverallErrorRate},
		Pair{"top_errors", Hist(es.TopErrors)},
		Pair{"by_user", byActor},
	)
}

func HourlyList(hs []aggregate.HourlyBucket) []any {
	out := make([]any, 0, len(hs))
	for _, h := range hs {
		out = append(out, NewMap(
			Pair{"hour", h.Hour},
			Pair{"events", h.Events},
			Pair{"top_user", h.TopActor},
			Pair{"top_action", h.TopAction},
			Pair{"error_rate", h.ErrorRate},
		))
	}
	return out
}

func AnomaliesMap(an detect.Anomalies) *Map {
	days := make([]any, 0, len(an.Days))
	for _, d := range an.Days {
		days = append(days, NewMap(
			Pair{"date", d.Date},
			Pair{"events", d.Events},
			Pair{"sigma", d.Sigma},
		))
	}
	return NewMap(
		Pair{"daily_mean", an.Mean},
		Pair{"daily_stddev", an.Stddev},
		Pair{"threshold", an.Threshold},
		Pair{"days", days},
	)
}

func SessionsList(ss []detect.Session) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, NewMap(
			Pair{"session", s.Index},
			Pair{"start", s.Start},
			Pair{"duration_minutes", s.DurationMinutes},
			Pair{"events", s.Events},
			Pair{"actions", strs(s.Actions)},
		))
	}
	return out
}

func PhasesMap(ph detect.Phases) *Map {
	m := NewMap()
	if ph.Recon != nil {
		m.Set("reconnaissance", NewMap(
			Pair{"phase", ph.Recon.Phase},
			Pair{"user", ph.Recon.Actor},
			Pair{"start", ph.Recon.Start},
			Pair{"end", ph.Recon.End},
			Pair{"duration_hours", ph.Recon.DurationHours},
			Pair{"events", ph.Recon.Events},
			Pair{"unique_actions", ph.Recon.UniqueActions},
			Pair{"services", strs(ph.Recon.Services)},
		))
	}
	if ph.Explosion != nil {
		m.Set("mass_exploitation", NewMap(
			Pair{"phase", ph.Explosion.Phase},
			Pair{"start", ph.Explosion.Start},
			Pair{"end", ph.Explosion.End},
			Pair{"total_events", ph.Explosion.Events},
			Pair{"hourly_peak", ph.Explosion.HourlyPeak},
			Pair{"unique_ips", ph.Explosion.UniqueIPs},
			Pair{"signature_attempts", ph.Explosion.SignatureAttempts},
			Pair{"error_rate", ph.Explosion.ErrorRate},
		))
	}
	return m
}

// strs 는 []string → []any (Map 값 통일용).
func strs(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
