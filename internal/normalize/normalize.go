// internal/normalize/normalize.go
package normalize

import (
	"strings"
	"sync/atomic"
	"time"

	"flawstrail/internal/metrics"
	"flawstrail/internal/model"
)

// normalize 패키지
// ------------------------------------------------------------
// 원본 레코드 1개 → 정규화 이벤트 1개의 순수(total) 변환.
//
// 불변식:
//   - 입력 RawEvent 를 절대 수정하지 않는다.
//   - 어떤 입력에 대해서도 panic/error 없이 반환한다.
//   - 필드 하나가 기본값으로 후퇴해도 나머지 필드는
//     독립적으로 정규화된다. 후퇴 사실은 Defaulted 비트로 남는다.

// 루트 계정 이벤트에 부여하는 고정 actor 이름.
// flaws.cloud 데이터셋의 루트는 곧 계정 소유자 "flaws" 다.
const RootActor = "flaws"

// UnknownActor 는 모든 identity 후퇴의 최종 기본값.
const UnknownActor = "Unknown"

// AWSService type 문자열. 서비스 주체 호출은 actor 를 식별하지 않는다.
const serviceIdentityType = "AWSService"

// Event 는 원본 레코드 하나를 정규화한다.
func Event(raw model.RawEvent) model.Event {
	ev := model.Event{
		EventName:   raw.EventName,
		EventSource: raw.EventSource,
		Region:      raw.AWSRegion,
		SourceIP:    raw.SourceIPAddress,
	}

	ev.Actor, ev.IdentityKind = Identity(raw.UserIdentity)
	if ev.IdentityKind == model.IdentityUnknown || ev.IdentityKind == model.IdentityServiceAccount {
		ev.Defaulted |= model.DefaultedIdentity
	}

	// 에러 플래그: errorCode 필드가 존재하고 non-null 일 때만 true.
	// 필드 자체가 없는 것은 "성공 호출"이며 DefaultedError 로 구분만 해 둔다.
	if raw.ErrorCode != nil {
		ev.HasError = true
		ev.ErrorCode = *raw.ErrorCode
	} else {
		ev.Defaulted |= model.DefaultedError
	}

	// 시간 버킷. 파싱 실패 시 zero time + Defaulted 비트.
	// 다른 필드 정규화에는 영향을 주지 않는다.
	if t, err := time.Parse(time.RFC3339, raw.EventTime); err == nil {
		t = t.UTC()
		ev.Time = t
		ev.Date = t.Format("2006-01-02")
		ev.Hour = t.Hour()
		ev.Month = t.Format("2006-01")
	} else {
		ev.Defaulted |= model.DefaultedTime
	}

	ev.Target = target(raw)

	return ev
}

// All 은 레코드 slice 전체를 정규화하고 후퇴 카운터를 집계한다.
func All(raws []model.RawEvent, m *metrics.Metrics) []model.Event {
	events := make([]model.Event, 0, len(raws))
	for _, raw := range raws {
		ev := Event(raw)
		if m != nil {
			if ev.Defaulted.Has(model.DefaultedIdentity) {
				atomic.AddInt64(&m.IdentityDefaultedTotal, 1)
			}
			if ev.Defaulted.Has(model.DefaultedTime) {
				atomic.AddInt64(&m.TimeDefaultedTotal, 1)
			}
		}
		events = append(events, ev)
	}
	return events
}

// Identity 는 userIdentity 블록을 tagged variant 로 해석한다.
//
// 우선순위 (원본 데이터셋 규칙 그대로):
//  1. userName 존재 → NamedUser, 그 값 사용
//  2. principalId 존재 → AssumedRole,
//     ':' 구분 ARN 세그먼트의 마지막 조각 사용.
//     단, 잘라낸 값이 accountId 와 같으면 자르지 않은 원래 값 유지
//     (계정 ID 자체가 principalId 인 루트성 레코드 케이스)
//  3. type == "Root" → Root, 고정 actor "flaws"
//  4. type == "AWSService" → ServiceAccount, "Unknown"
//  5. 그 외 전부 → Unknown, "Unknown"
func Identity(id model.RawIdentity) (string, model.IdentityKind) {
	if id.UserName != "" {
		return id.UserName, model.IdentityNamedUser
	}

	if id.PrincipalID != "" {
		p := id.PrincipalID
		if i := strings.LastIndexByte(p, ':'); i >= 0 {
			trimmed := p[i+1:]
			if trimmed == id.AccountID {
				return p, model.IdentityAssumedRole
			}
			return trimmed, model.IdentityAssumedRole
		}
		return p, model.IdentityAssumedRole
	}

	switch id.Type {
	case "Root":
		return RootActor, model.IdentityRoot
	case serviceIdentityType:
		return UnknownActor, model.IdentityServiceAccount
	}

	return UnknownActor, model.IdentityUnknown
}

// target 은 특정 액션에서 대상 리소스 식별자를 뽑는다.
// 현재는 AssumeRole 의 roleArn 만 의미가 있다.
// 모양이 기대와 다르면 조용히 "" (탐지/집계에 영향 없음).
func target(raw model.RawEvent) string {
	if raw.EventName != "AssumeRole" || raw.RequestParameters == nil {
		return ""
	}
	if v, ok := raw.RequestParameters["roleArn"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
