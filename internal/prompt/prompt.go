// internal/prompt/prompt.go
package prompt

import (
	"fmt"

	"flawstrail/internal/interchange"

	json "github.com/goccy/go-json"
)

// prompt 패키지
// ------------------------------------------------------------
// 집계/탐지 산출물을 외부 서술 생성 서비스(LLM)에 넘길
// 구조화 텍스트 블록으로 직렬화하는 순수 포매팅 계층.
//
// 여기서는 아무것도 계산하지 않는다. 입력은 이미 계산된
// ordered Map/리스트이고, 출력은 2-space 들여쓰기 JSON 을
// 박아 넣은 고정 템플릿 텍스트다. 같은 입력이면 byte 단위로
// 같은 프롬프트가 나온다 (테스트에서 diff 가능해야 함).

// SystemPrompt 는 모든 LLM 호출에 공통으로 쓰는 역할 지정.
const SystemPrompt = "You are a cloud security forensic analyst."

// block 은 값 하나를 2-space 들여쓰기 JSON 으로 렌더링한다.
// 실패는 산출물 버그이므로 placeholder 텍스트로 표면화한다
// (프롬프트 조립이 분석 run 을 죽여서는 안 됨).
func block(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<serialization error: %v>", err)
	}
	return string(b)
}

// truncate 는 리스트 값의 앞 n개만 남긴다 (프롬프트 크기 제어).
func truncate(v any, n int) any {
	if arr, ok := v.([]any); ok && len(arr) > n {
		return arr[:n]
	}
	return v
}

// Narrative — 상위 anomalous day 요약 + 사용자 프로파일로
// "이게 무슨 공격인가"를 묻는다.
func Narrative(dailySummaries any, profiles *interchange.Map) string {
	return fmt.Sprintf(`Analyze this CloudTrail attack pattern:

Top 5 anomalous days:
%s

User profiles:
%s

Questions:
1. What type of attack is this?
2. Is this manual or automated?
3. What was the attacker trying to achieve?`,
		block(truncate(dailySummaries, 5)), block(profiles))
}

// UserComparison — 정찰형 vs 대량공격형 사용자의 행동 차이.
func UserComparison(profiles *interchange.Map) string {
	return fmt.Sprintf(`Compare user behaviors:

%s

Explain:
1. Which user was doing reconnaissance vs exploitation?
2. Which users appear to be automated vs manual?
3. What is the relationship between the accounts?`, block(profiles))
}

// Timeline — phase 요약 + 프로파일로 공격 타임라인 복원 요청.
func Timeline(phases *interchange.Map, profiles *interchange.Map) string {
	return fmt.Sprintf(`Reconstruct the attack timeline:

Attack phases:
%s

User profiles:
%s

Build a forensic timeline explaining the progression from reconnaissance to exploitation.`,
		block(phases), block(profiles))
}

// AttackPhases — phase 별 행동/의도 차이.
func AttackPhases(phases *interchange.Map) string {
	return fmt.Sprintf(`Analyze these distinct attack phases:

%s

Questions:
1. How does each phase differ in behavior and intent?
2. What triggered the transition from reconnaissance to mass exploitation?
3. Is this consistent with credential leakage patterns?`, block(phases))
}

// IPIntelligence — 공격 인프라 분석.
func IPIntelligence(ipIntel *interchange.Map) string {
	return fmt.Sprintf(`Analyze IP address patterns:

%s

Questions:
1. What do IP patterns reveal about attacker infrastructure?
2. Is this coordinated or opportunistic?
3. How many distinct threat actors are involved?`, block(ipIntel))
}

// BehavioralSequences — 세션 단위 행동 시퀀스 비교.
// exploitation 쪽은 자동화 세션이 수백 개라 앞 2개만 싣는다.
func BehavioralSequences(reconActor string, recon any, exploitActor string, exploit any) string {
	return fmt.Sprintf(`Analyze user behavioral sequences:

%s (Reconnaissance):
%s

%s (Exploitation):
%s

Questions:
1. How does manual reconnaissance differ from automated exploitation?
2. What specific actions reveal attacker intent?
3. Can you reconstruct the discovery process?`,
		reconActor, block(recon), exploitActor, block(truncate(exploit, 2)))
}

// ErrorForensics — 에러 패턴으로 방어 측 동작 추론.
func ErrorForensics(errorAnalysis *interchange.Map) string {
	return fmt.Sprintf(`Analyze error patterns:

%s

Questions:
1. What do errors reveal about AWS defensive measures?
2. How did attackers adapt to rate limiting?
3. Which AWS security controls were most effective?`, block(errorAnalysis))
}

// Correlations — 공유 IP 기반 동일 공격자 가설 검증.
func Correlations(correlations any) string {
	return fmt.Sprintf(`Analyze cross-user correlations:

Shared IPs:
%s

Questions:
1. Are the high-volume accounts the same attacker?
2. What evidence supports coordination vs opportunistic abuse?
3. How was the attack campaign organized?`, block(correlations))
}

// ExplosionTimeline — 폭발 구간 hour-by-hour 분석.
func ExplosionTimeline(hourly any) string {
	return fmt.Sprintf(`Analyze the hourly breakdown of the mass-exploitation window:

%s

Questions:
1. At what exact hour did the explosion start?
2. What was the peak intensity and why?
3. How did the attack evolve hour by hour?`, block(truncate(hourly, 20)))
}

// QAContext — 자유 질문용 컨텍스트 블록.
// 질문은 caller 가 "QUESTION: ..." 으로 이어 붙인다.
func QAContext(stats *interchange.Map) string {
	return fmt.Sprintf(`You are analyzing AWS CloudTrail logs from the flaws.cloud CTF dataset.

KEY STATISTICS:
%s

Interpret patterns and explain events in plain English. Use the statistics
above as ground truth; do not invent counts that are not present.`, block(stats))
}

// Question 은 QA 컨텍스트에 실제 질문을 붙인다.
func Question(qaContext, q string) string {
	return fmt.Sprintf("%s\n\nQUESTION: %s\n\nProvide a concise answer.", qaContext, q)
}
