// internal/detect/detect.go
package detect

import (
	"math"
	"sort"
	"strings"
	"time"

	"flawstrail/internal/aggregate"
	"flawstrail/internal/model"

	"gonum.org/v1/gonum/stat"
)

// detect 패키지
// ------------------------------------------------------------
// 통계 기반 이상 일자 탐지 + actor 세션 분절 + 공격 phase 요약.
// aggregate 와 마찬가지로 순수 projection: 입력 불변, 상태 없음.

// ------------------------------------------------------------
// Threshold anomaly detection
// ------------------------------------------------------------

type AnomalousDay struct {
	Date   string  `json:"date"`
	Events int     `json:"events"`
	Sigma  float64 `json:"sigma"` // (count − μ) / σ
}

type Anomalies struct {
	Mean      float64        `json:"daily_mean"`
	Stddev    float64        `json:"daily_stddev"`
	Threshold float64        `json:"threshold"` // μ + 3σ
	Days      []AnomalousDay `json:"days"`      // count 내림차순
}

// AnomalousDays 는 일자별 이벤트 수의 μ + 3σ 를 넘는 날을 찾는다.
//
// σ 는 표본 표준편차(n−1 분모, gonum stat.MeanStdDev 기본)다.
// 관측 일수가 적은 이 데이터셋에서는 모표준편차와 결과가 실제로
// 달라지므로 명시해 둔다. 일수가 2 미만이면 σ 가 정의되지 않아
// 아무 날도 플래그하지 않는다.
func AnomalousDays(events []model.Event) Anomalies {
	daily := aggregate.DailyCounts(events)
	if len(daily) < 2 {
		return Anomalies{}
	}

	counts := make([]float64, len(daily))
	for i, d := range daily {
		counts[i] = float64(d.Count)
	}

	mean, std := stat.MeanStdDev(counts, nil)
	threshold := mean + 3*std

	res := Anomalies{Mean: mean, Stddev: std, Threshold: threshold}
	for _, d := range daily {
		if float64(d.Count) > threshold {
			// σ-거리는 산출물 재현성을 위해 소수 2자리로 고정
			res.Days = append(res.Days, AnomalousDay{
				Date:   d.Name,
				Events: d.Count,
				Sigma:  math.Round((float64(d.Count)-mean)/std*100) / 100,
			})
		}
	}

	sort.SliceStable(res.Days, func(i, j int) bool { return res.Days[i].Events > res.Days[j].Events })
	return res
}

// ------------------------------------------------------------
// Session segmentation
// ------------------------------------------------------------

type Session struct {
	Index           int      `json:"session"` // actor 내 순번 (위치 기반, 안정 ID 아님)
	Start           string   `json:"start"`
	DurationMinutes float64  `json:"duration_minutes"`
	Events          int      `json:"events"`
	Actions         []string `json:"actions"` // maxActions 까지만
}

// SessionParams 는 분절 규칙. config 기본값: gap 1h, min 5, max 5.
type SessionParams struct {
	Gap        time.Duration
	MinEvents  int // 이 값 "이하" 이벤트 세션은 버린다 (정확히 6개부터 유지)
	MaxSess    int
	MaxActions int
}

// Sessions 는 actor 1명의 이벤트를 시간순으로 정렬해서
// idle gap > Gap 마다 새 세션으로 자른다.
//
// 반환 정책: "시간순으로 처음 만난" MaxSess 개 — 가장 큰 N 개가 아니다.
// 분석가가 보고 싶은 것은 최초 행동(정찰 초기 세션)이기 때문이다.
// 이벤트 0개 actor → 빈 slice (에러 아님).
func Sessions(events []model.Event, actor string, p SessionParams) []Session {
	sub := aggregate.ByActor(events, actor)
	if len(sub) == 0 {
		return []Session{}
	}

	sort.SliceStable(sub, func(i, j int) bool { return sub[i].Time.Before(sub[j].Time) })

	var out []Session
	segStart := 0
	segIndex := 0

	flush := func(lo, hi int) { // [lo, hi)
		seg := sub[lo:hi]
		segIndex++
		if len(seg) <= p.MinEvents || len(out) >= p.MaxSess {
			return
		}
		actions := make([]string, 0, min(len(seg), p.MaxActions))
		for _, ev := range seg {
			if len(actions) >= p.MaxActions {
				break
			}
			actions = append(actions, ev.EventName)
		}
		out = append(out, Session{
			Index:           segIndex - 1,
			Start:           seg[0].Time.Format(time.RFC3339),
			DurationMinutes: seg[len(seg)-1].Time.Sub(seg[0].Time).Minutes(),
			Events:          len(seg),
			Actions:         actions,
		})
	}

	for i := 1; i < len(sub); i++ {
		if sub[i].Time.Sub(sub[i-1].Time) > p.Gap {
			flush(segStart, i)
			segStart = i
		}
	}
	flush(segStart, len(sub))

	if out == nil {
		out = []Session{}
	}
	return out
}

// ------------------------------------------------------------
// Attack phases
// ------------------------------------------------------------

type ReconPhase struct {
	Phase         string   `json:"phase"`
	Actor         string   `json:"user"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	DurationHours float64  `json:"duration_hours"`
	Events        int      `json:"events"`
	UniqueActions int      `json:"unique_actions"`
	Services      []string `json:"services"` // 처음 관측된 순서
}

type ExplosionPhase struct {
	Phase             string  `json:"phase"`
	Start             string  `json:"start"`
	End               string  `json:"end"`
	Events            int     `json:"total_events"`
	HourlyPeak        int     `json:"hourly_peak"`
	UniqueIPs         int     `json:"unique_ips"`
	SignatureAttempts int     `json:"signature_attempts"` // 예: RunInstances 시도 수
	ErrorRate         float64 `json:"error_rate"`
}

type Phases struct {
	Recon     *ReconPhase     `json:"reconnaissance,omitempty"`
	Explosion *ExplosionPhase `json:"mass_exploitation,omitempty"`
}

// PhaseParams — config 에서 내려오는 데이터셋 상수들.
type PhaseParams struct {
	ReconActor      string // 정찰 phase 로 볼 actor
	ExplosionPrefix string // 폭발 구간 날짜 prefix (예: "2019-08-2")
	SignatureAction string // 폭발 구간 시그니처 액션
}

// AttackPhases 는 공격 lifecycle 의 두 구간을 요약한다.
// 해당 구간 이벤트가 없으면 그 phase 는 생략 (nil).
func AttackPhases(events []model.Event, p PhaseParams) Phases {
	var ph Phases

	recon := aggregate.ByActor(events, p.ReconActor)
	if len(recon) > 0 {
		sort.SliceStable(recon, func(i, j int) bool { return recon[i].Time.Before(recon[j].Time) })
		first := recon[0].Time
		last := recon[len(recon)-1].Time

		seen := make(map[string]bool)
		var services []string
		actions := make(map[string]bool)
		for _, ev := range recon {
			if ev.EventSource != "" && !seen[ev.EventSource] {
				seen[ev.EventSource] = true
				services = append(services, ev.EventSource)
			}
			actions[ev.EventName] = true
		}

		ph.Recon = &ReconPhase{
			Phase:         "Initial_Reconnaissance",
			Actor:         p.ReconActor,
			Start:         first.Format(time.RFC3339),
			End:           last.Format(time.RFC3339),
			DurationHours: last.Sub(first).Hours(),
			Events:        len(recon),
			UniqueActions: len(actions),
			Services:      services,
		}
	}

	boom := aggregate.Filter(events, func(ev model.Event) bool {
		return strings.HasPrefix(ev.Date, p.ExplosionPrefix)
	})
	if len(boom) > 0 {
		dates := aggregate.DailyCounts(boom)
		hourly := aggregate.Hourly(boom, 0)
		peak := 0
		for _, h := range hourly {
			if h.Events > peak {
				peak = h.Events
			}
		}
		sigs := 0
		ips := make(map[string]bool)
		for _, ev := range boom {
			if ev.EventName == p.SignatureAction {
				sigs++
			}
			if ev.SourceIP != "" {
				ips[ev.SourceIP] = true
			}
		}

		ph.Explosion = &ExplosionPhase{
			Phase:             "Mass_Exploitation",
			Start:             dates[0].Name,
			End:               dates[len(dates)-1].Name,
			Events:            len(boom),
			HourlyPeak:        peak,
			UniqueIPs:         len(ips),
			SignatureAttempts: sigs,
			ErrorRate:         aggregate.ErrorRate(boom),
		}
	}

	return ph
}
