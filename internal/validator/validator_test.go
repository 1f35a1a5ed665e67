package validator

import "testing"

func TestValidExamKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"223_exam_summer", true},
		{"223-final", true},
		{"../etc/passwd", false},
		{"223/exam", false},
		{"", false},
		{"_hidden", false},
		{"a.json", false},
	}
	for _, tt := range tests {
		if got := ValidExamKey(tt.key); got != tt.want {
			t.Errorf("ValidExamKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
