package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestScore_JSON(t *testing.T) {
	tests := []struct {
		name  string
		score Score
		want  string
	}{
		{name: "number", score: 850, want: `850`},
		{name: "fraction", score: 100.5, want: `100.5`},
		{name: "invalid", score: InvalidScore(), want: `null`},
		{name: "positive infinity", score: Score(math.Inf(1)), want: `"Infinity"`},
		{name: "negative infinity", score: Score(math.Inf(-1)), want: `"-Infinity"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.score)
			if err != nil {
				t.Fatalf("Expected no error, but got %v", err)
			}
			if string(b) != tt.want {
				t.Fatalf("Expected %s, but got %s", tt.want, b)
			}

			var got Score
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("Expected no error, but got %v", err)
			}
			if !tt.score.Valid() {
				if got.Valid() {
					t.Errorf("Expected an invalid score, but got %v", got)
				}
				return
			}
			if got != tt.score {
				t.Errorf("Expected %v, but got %v", tt.score, got)
			}
		})
	}
}

func TestScore_UnmarshalRejectsText(t *testing.T) {
	var s Score
	if err := json.Unmarshal([]byte(`"lots"`), &s); err == nil {
		t.Errorf("Expected an error for a non-numeric string, got %v", s)
	}
}
