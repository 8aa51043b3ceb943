// internal/model/event.go
package model

import "time"

// RawEvent
// ------------------------------------------------------------
// CloudTrail 로그 샤드에서 파싱된 단일 원본 레코드.
// 분석 파이프라인 전체의 "입력 단위"이며, normalize 단계가
// 이 구조체를 읽기만 하고 절대 수정하지 않는다.
//
// userIdentity / requestParameters 는 레코드마다 모양이 다른
// 이기종(heterogeneous) 객체이므로 느슨한 타입으로 받는다.
// 필드 해석 규칙은 전부 normalize 패키지에 있다.
type RawEvent struct {
	EventTime         string         `json:"eventTime"`                   // RFC3339 timestamp 문자열
	EventName         string         `json:"eventName"`                   // API 액션명 (예: RunInstances)
	EventSource       string         `json:"eventSource"`                 // 호출된 서비스 (예: ec2.amazonaws.com)
	AWSRegion         string         `json:"awsRegion,omitempty"`         // 리전
	UserIdentity      RawIdentity    `json:"userIdentity"`                // 호출 주체 (이기종)
	SourceIPAddress   string         `json:"sourceIPAddress,omitempty"`   // 호출 IP (없을 수 있음)
	ErrorCode         *string        `json:"errorCode,omitempty"`         // 존재+non-null 이면 실패 호출
	RequestParameters map[string]any `json:"requestParameters,omitempty"` // 대상 리소스 추출용
}

// RawIdentity
// ------------------------------------------------------------
// CloudTrail userIdentity 블록. 어떤 필드가 올지 레코드마다 다르다.
// (IAM 유저는 userName, assumed-role 은 principalId/arn,
// 루트는 type=Root, 서비스 호출은 type=AWSService 등)
type RawIdentity struct {
	Type        string `json:"type,omitempty"`
	UserName    string `json:"userName,omitempty"`
	PrincipalID string `json:"principalId,omitempty"`
	ARN         string `json:"arn,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
}

// IdentityKind 는 userIdentity 해석 결과의 tagged variant.
// 느슨한 dict 접근 대신 variant 별 추출 함수를 강제해서
// silent fallthrough 버그를 막는다.
type IdentityKind int

const (
	IdentityUnknown IdentityKind = iota
	IdentityNamedUser
	IdentityAssumedRole
	IdentityRoot
	IdentityServiceAccount
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityNamedUser:
		return "NamedUser"
	case IdentityAssumedRole:
		return "AssumedRole"
	case IdentityRoot:
		return "Root"
	case IdentityServiceAccount:
		return "ServiceAccount"
	default:
		return "Unknown"
	}
}

// Defaulted
// ------------------------------------------------------------
// normalize 가 기본값으로 후퇴한 필드를 기록하는 비트셋.
// "필드가 없어서 기본값"과 "모양이 이상해서 기본값"을
// 호출자와 테스트가 구분할 수 있게 한다.
type Defaulted uint8

const (
	DefaultedIdentity Defaulted = 1 << iota // actor 가 "Unknown" 으로 후퇴
	DefaultedTime                           // eventTime 파싱 실패 → zero time
	DefaultedError                          // errorCode 필드 자체가 없음 → has_error=false
)

func (d Defaulted) Has(f Defaulted) bool { return d&f != 0 }

// Event
// ------------------------------------------------------------
// 정규화된 이벤트. 파이프라인의 모든 집계/탐지 연산은
// 이 구조체 slice 하나를 입력으로 받는다.
// 한 번 만들어지면 run 이 끝날 때까지 수정되지 않는다.
type Event struct {
	Actor        string       // 정규화된 행위자 이름 (없으면 "Unknown")
	IdentityKind IdentityKind // actor 가 어떤 variant 에서 나왔는지
	EventName    string
	EventSource  string
	Region       string
	SourceIP     string
	Target       string // AssumeRole 등 특정 액션의 대상 리소스 (없으면 "")
	Time         time.Time
	Date         string // "YYYY-MM-DD"
	Hour         int    // 0-23
	Month        string // "YYYY-MM"
	HasError     bool
	ErrorCode    string // HasError 일 때만 의미 있음
	Defaulted    Defaulted
}
