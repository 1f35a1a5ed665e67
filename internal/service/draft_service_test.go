package service

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeDraft(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"B"`, `"B"`},
		{`["A","C"]`, `["A","C"]`},
		{`{"30-1":"6"}`, `{"30-1":"6"}`},
		{`18`, `18`},
		{`B`, `"B"`},
		{`A, C`, `"A, C"`},
	}
	for _, tt := range tests {
		if got := normalizeDraft(tt.in); got != tt.want {
			t.Errorf("normalizeDraft(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeDrafts(t *testing.T) {
	sheet := DecodeDrafts(map[string]string{
		"1": `"B"`,
		"2": `["A","C"]`,
		"3": `6.0`,
		"4": `{"4-1":"x"}`,
	})

	if sheet["1"] != "B" {
		t.Errorf("sheet[1] = %v", sheet["1"])
	}
	if !reflect.DeepEqual(sheet["2"], []any{"A", "C"}) {
		t.Errorf("sheet[2] = %#v", sheet["2"])
	}
	if sheet["3"] != json.Number("6.0") {
		t.Errorf("sheet[3] = %#v, want json.Number 6.0", sheet["3"])
	}
	if m, ok := sheet["4"].(map[string]any); !ok || m["4-1"] != "x" {
		t.Errorf("sheet[4] = %#v", sheet["4"])
	}
}
