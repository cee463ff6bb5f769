package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecode_Envelope(t *testing.T) {
	frame, err := Encode(EventToken, Token{Content: "Hi "})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Event != EventToken {
		t.Errorf("Expected event %q, got %q", EventToken, env.Event)
	}

	var p Token
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("Unmarshal payload failed: %v", err)
	}
	if p.Content != "Hi " {
		t.Errorf("Expected content %q, got %q", "Hi ", p.Content)
	}
}

func TestEncode_NilPayloadOmitsData(t *testing.T) {
	frame, err := Encode(EventLeaveSession, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(env.Data) != 0 {
		t.Errorf("Expected no data, got %s", env.Data)
	}
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", "token:hello"},
		{"missing event", `{"data":{"content":"x"}}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.frame)); err == nil {
				t.Error("Expected decode error")
			}
		})
	}
}
