package inspector

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"pageprobe-agent/internal/model"
)

func TestFormatTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []any
		want []model.LogToken
	}{
		{"no args", nil, nil},
		{"plain values", []any{"a", 1, true, nil}, []model.LogToken{
			{Type: tokenString, Value: "a"},
			{Type: tokenNumber, Value: 1.0},
			{Type: tokenBoolean, Value: true},
			{Type: tokenNull},
		}},
		{"string directive", []any{"hello %s!", "world"}, []model.LogToken{
			{Type: tokenString, Value: "hello "},
			{Type: tokenString, Value: "world"},
			{Type: tokenString, Value: "!"},
		}},
		{"integer directives truncate", []any{"%d/%i", 3.7, "12"}, []model.LogToken{
			{Type: tokenNumber, Value: 3.0},
			{Type: tokenString, Value: "/"},
			{Type: tokenNumber, Value: 12.0},
		}},
		{"float and style", []any{"%c%f", "color: red", 1.5}, []model.LogToken{
			{Type: tokenStyle, Value: "color: red"},
			{Type: tokenNumber, Value: 1.5},
		}},
		{"object directive", []any{"%o", map[string]int{"a": 1}}, []model.LogToken{
			{Type: tokenObject, Value: map[string]int{"a": 1}},
		}},
		{"escaped percent and leftovers", []any{"100%% %s", "done", "extra"}, []model.LogToken{
			{Type: tokenString, Value: "100% "},
			{Type: tokenString, Value: "done"},
			{Type: tokenString, Value: "extra"},
		}},
		{"directive without argument", []any{"%s and %d", "x"}, []model.LogToken{
			{Type: tokenString, Value: "x"},
			{Type: tokenString, Value: " and %d"},
		}},
		{"error value", []any{errors.New("boom")}, []model.LogToken{
			{Type: tokenString, Value: "boom"},
		}},
	}
	for _, tt := range tests {
		if got := formatTokens(tt.args); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: formatTokens(%v) = %#v, want %#v", tt.name, tt.args, got, tt.want)
		}
	}
}

func TestFormatTokensKeepsValuesEncodable(t *testing.T) {
	t.Parallel()
	got := formatTokens([]any{math.NaN(), func() {}})
	if got[0].Value != "NaN" {
		t.Errorf("NaN token = %#v", got[0])
	}
	if _, ok := got[1].Value.(string); !ok {
		t.Errorf("func token = %#v, want a string rendering", got[1])
	}
}
