// internal/llm/client.go
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"flawstrail/internal/config"
	"flawstrail/internal/metrics"
	"flawstrail/internal/prompt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// llm 패키지
// ------------------------------------------------------------
// 외부 chat-completions 호환 API 호출 경계.
//
// 파이프라인에서 유일하게 네트워크 + 비결정성이 들어오는 지점이라
// 인터페이스 뒤로 격리한다. 분석/집계 쪽 코드는 이 패키지를
// 전혀 모르고, report 조립 단계만 Client 를 받는다.
//
// 재시도 정책: 하지 않는다. 호출당 과금되는 API 이고 실패 시
// 사용자가 같은 산출물로 다시 실행하면 되므로, 1회 시도 후
// 타입 구분된 에러로 즉시 반환한다.

// Client 는 프롬프트 1개 → 서술 텍스트 1개.
type Client interface {
	Complete(ctx context.Context, userPrompt string) (string, error)
}

var (
	// ErrUnavailable — API 키 미설정 등 호출 자체가 불가능.
	ErrUnavailable = errors.New("llm: not configured")
	// ErrStatus — 서버가 2xx 아닌 응답.
	ErrStatus = errors.New("llm: non-2xx response")
	// ErrBadResponse — 2xx 지만 본문이 기대 형태가 아님.
	ErrBadResponse = errors.New("llm: malformed response")
)

// ------------------------------------------------------------
// chat-completions wire 타입
// ------------------------------------------------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ------------------------------------------------------------
// HTTP 구현
// ------------------------------------------------------------

type httpClient struct {
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
	hc        *http.Client
	metrics   *metrics.Metrics
}

// New 는 config 기반 HTTP 클라이언트를 만든다.
// API 키가 비어 있으면 즉시 ErrUnavailable — caller 가 --local
// 경로로 빠질지 중단할지 선택한다.
func New(cfg config.Config, m *metrics.Metrics) (Client, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY not set", ErrUnavailable)
	}
	return &httpClient{
		baseURL:   cfg.LLMBaseURL,
		model:     cfg.LLMModel,
		apiKey:    cfg.LLMAPIKey,
		maxTokens: cfg.LLMMaxTokens,
		hc:        &http.Client{Timeout: cfg.LLMTimeout},
		metrics:   m,
	}, nil
}

func (c *httpClient) Complete(ctx context.Context, userPrompt string) (string, error) {
	atomic.AddInt64(&c.metrics.LLMCallsTotal, 1)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.SystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	// 에러 본문도 진단에 필요하므로 상한 걸고 전부 읽는다.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		log.Warn().Int("status", resp.StatusCode).
			Str("body", snippet(raw)).Msg("LLM 호출 실패")
		return "", fmt.Errorf("%w: status %d", ErrStatus, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if parsed.Error != nil {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("%w: %s", ErrBadResponse, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		atomic.AddInt64(&c.metrics.LLMErrorsTotal, 1)
		return "", fmt.Errorf("%w: empty choices", ErrBadResponse)
	}

	return parsed.Choices[0].Message.Content, nil
}

// snippet 은 로그용 본문 앞부분.
func snippet(b []byte) string {
	const n = 256
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
