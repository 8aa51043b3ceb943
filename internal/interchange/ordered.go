// internal/interchange/ordered.go
package interchange

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// Map
// ------------------------------------------------------------
// 삽입 순서를 보존하는 JSON 객체.
//
// Go 의 map 은 순회 순서가 비결정적이라서 산출물 JSON 의
// byte-diff 재현성이 깨진다. 교환 파일의 핵심 계약이
// "읽고 다시 쓰면 byte 단위로 같은 파일" 이므로,
// 히스토그램류(상위 액션, 상위 actor 등)와 문서 자체를
// 전부 이 타입으로 표현한다.
type Map struct {
	keys []string
	vals map[string]any
}

// Pair 는 초기화 편의용.
type Pair struct {
	Key string
	Val any
}

func NewMap(pairs ...Pair) *Map {
	m := &Map{vals: make(map[string]any, len(pairs))}
	for _, p := range pairs {
		m.Set(p.Key, p.Val)
	}
	return m
}

// Set 은 새 키를 끝에 추가한다. 기존 키는 순서를 유지한 채 값만 교체.
func (m *Map) Set(key string, val any) {
	if m.vals == nil {
		m.vals = make(map[string]any)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = val
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *Map) Keys() []string { return m.keys }

func (m *Map) Len() int { return len(m.keys) }

// MarshalJSON 은 삽입 순서대로 compact 직렬화한다.
// 들여쓰기는 바깥의 MarshalIndent 가 다시 입힌다.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 은 키 등장 순서를 그대로 보존하며 디코딩한다.
// 값은 decodeValue 규칙을 따른다 (객체 → *Map, 숫자 → json.Number).
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("interchange: expected object, got %v", tok)
	}

	return m.decodeObject(dec)
}

// decodeObject 는 '{' 를 이미 소비한 상태에서 나머지를 읽는다.
func (m *Map) decodeObject(dec *json.Decoder) error {
	m.keys = nil
	m.vals = make(map[string]any)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("interchange: expected object key, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return err
		}
		m.Set(key, val)
	}

	// 닫는 '}' 소비
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// decodeValue 는 임의의 JSON 값을 순서 보존 형태로 읽는다.
//   - 객체  → *Map
//   - 배열  → []any
//   - 숫자  → json.Number (원문 보존: 39 가 39.0 으로 바뀌지 않음)
//   - 나머지 → string / bool / nil
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := &Map{}
			if err := m.decodeObject(dec); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			var arr []any
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil { // 닫는 ']'
				return nil, err
			}
			if arr == nil {
				arr = []any{} // null 과 빈 배열을 구분
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("interchange: unexpected delim %v", t)
		}
	default:
		return t, nil // string, json.Number, bool, nil
	}
}
