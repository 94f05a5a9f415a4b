package tts

import (
	"errors"
	"testing"
)

func TestResolveVoice(t *testing.T) {
	voices := []Voice{
		{Name: "Microsoft David Desktop", Locale: "en-US", Gender: "male"},
		{Name: "Microsoft Zira Desktop", Locale: "en-US", Gender: "female"},
		{Name: "Microsoft Hazel Desktop", Locale: "en-GB", Gender: "female"},
	}

	tests := []struct {
		name     string
		query    string
		expected string
		wantErr  error
	}{
		{"empty query uses engine default", "", "", nil},
		{"exact match ignores case", "microsoft zira desktop", "Microsoft Zira Desktop", nil},
		{"fuzzy match", "hazel", "Microsoft Hazel Desktop", nil},
		{"no match", "qqq", "", ErrVoiceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVoice(tt.query, voices)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got.Name != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got.Name)
			}
		})
	}
}
