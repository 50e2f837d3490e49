package inspector

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pageprobe-agent/internal/model"
)

// Token types of console messages.
const (
	tokenString  = "string"
	tokenNumber  = "number"
	tokenBoolean = "boolean"
	tokenNull    = "null"
	tokenObject  = "object"
	tokenStyle   = "style"
)

// formatTokens expands printf-style directives of a leading format string
// (%s %d %i %f %o %O %c %%) and appends the remaining arguments as typed
// tokens.
func formatTokens(args []any) []model.LogToken {
	if len(args) == 0 {
		return nil
	}
	format, ok := args[0].(string)
	if !ok || !strings.Contains(format, "%") {
		return valueTokens(args)
	}
	rest := args[1:]
	var (
		out []model.LogToken
		lit strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, model.LogToken{Type: tokenString, Value: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			lit.WriteByte(c)
			continue
		}
		verb := format[i+1]
		if verb == '%' {
			lit.WriteByte('%')
			i++
			continue
		}
		if !strings.ContainsRune("sdifoOc", rune(verb)) || len(rest) == 0 {
			lit.WriteByte(c)
			continue
		}
		i++
		arg := rest[0]
		rest = rest[1:]
		flush()
		out = append(out, directiveToken(verb, arg))
	}
	flush()
	return append(out, valueTokens(rest)...)
}

func directiveToken(verb byte, arg any) model.LogToken {
	switch verb {
	case 's':
		return model.LogToken{Type: tokenString, Value: fmt.Sprint(arg)}
	case 'd', 'i':
		f, ok := toFloat(arg)
		if !ok {
			return model.LogToken{Type: tokenNumber, Value: nil}
		}
		return numberToken(math.Trunc(f))
	case 'f':
		f, ok := toFloat(arg)
		if !ok {
			return model.LogToken{Type: tokenNumber, Value: nil}
		}
		return numberToken(f)
	case 'c':
		return model.LogToken{Type: tokenStyle, Value: fmt.Sprint(arg)}
	default:
		return model.LogToken{Type: tokenObject, Value: jsonSafe(arg)}
	}
}

func valueTokens(args []any) []model.LogToken {
	out := make([]model.LogToken, 0, len(args))
	for _, a := range args {
		out = append(out, valueToken(a))
	}
	return out
}

func valueToken(v any) model.LogToken {
	switch x := v.(type) {
	case nil:
		return model.LogToken{Type: tokenNull}
	case string:
		return model.LogToken{Type: tokenString, Value: x}
	case bool:
		return model.LogToken{Type: tokenBoolean, Value: x}
	case error:
		return model.LogToken{Type: tokenString, Value: x.Error()}
	case fmt.Stringer:
		return model.LogToken{Type: tokenString, Value: x.String()}
	}
	if f, ok := toFloat(v); ok {
		return numberToken(f)
	}
	return model.LogToken{Type: tokenObject, Value: jsonSafe(v)}
}

// numberToken keeps non-finite values encodable.
func numberToken(f float64) model.LogToken {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return model.LogToken{Type: tokenNumber, Value: strconv.FormatFloat(f, 'g', -1, 64)}
	}
	return model.LogToken{Type: tokenNumber, Value: f}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// jsonSafe returns v when it encodes as JSON, or its %+v rendering.
func jsonSafe(v any) any {
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return v
}
