package instrument

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const redacted = "***"

// Masker redacts log values by key, case-insensitively. Full keys are
// replaced with "***". Partial keys keep their last two characters so a
// phone or email stays recognisable to operators.
type Masker struct {
	full    map[string]struct{}
	partial map[string]struct{}
}

func NewMasker(full, partial []string) Masker {
	return Masker{full: keySet(full), partial: keySet(partial)}
}

func keySet(fields []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(strings.ToLower(field))
		if field == "" {
			continue
		}
		set[field] = struct{}{}
	}
	return set
}

// Enabled reports whether any key is configured.
func (m Masker) Enabled() bool {
	return len(m.full) > 0 || len(m.partial) > 0
}

// Key masks s when key is configured. ok is false when s is left as is.
func (m Masker) Key(key, s string) (string, bool) {
	key = strings.ToLower(key)
	if _, found := m.full[key]; found {
		return redacted, true
	}
	if _, found := m.partial[key]; found {
		return maskTail(s), true
	}
	return s, false
}

// Data walks decoded JSON (maps and slices) and masks configured keys.
func (m Masker) Data(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			if masked, ok := m.scalar(k, v2); ok {
				out[k] = masked
				continue
			}
			out[k] = m.Data(v2)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[k], _ = m.Key(k, v2)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = m.Data(v2)
		}
		return out
	default:
		return v
	}
}

func (m Masker) scalar(key string, v any) (any, bool) {
	lk := strings.ToLower(key)
	if _, found := m.full[lk]; found {
		return redacted, true
	}
	if _, found := m.partial[lk]; found {
		if s, ok := v.(string); ok {
			return maskTail(s), true
		}
		return redacted, true
	}
	return nil, false
}

// JSON masks a JSON object or array payload and re-encodes it.
func (m Masker) JSON(payload []byte) (string, bool) {
	if len(payload) == 0 || (payload[0] != '{' && payload[0] != '[') {
		return "", false
	}

	var body any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", false
	}

	out, err := json.Marshal(m.Data(body))
	if err != nil {
		return "", false
	}
	return string(out), true
}

func maskTail(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return redacted
	}
	return strings.Repeat("*", len(r)-2) + string(r[len(r)-2:])
}

// attr masks one slog attribute, descending into groups and into string
// values that hold JSON.
func (m Masker) attr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = m.attr(ga)
		}
		a.Value = slog.GroupValue(masked...)
	case slog.KindString:
		if s, ok := m.Key(a.Key, a.Value.String()); ok {
			a.Value = slog.StringValue(s)
		} else if s, ok := m.JSON([]byte(a.Value.String())); ok {
			a.Value = slog.StringValue(s)
		}
	case slog.KindAny:
		switch val := a.Value.Any().(type) {
		case nil:
		case map[string]any, map[string]string, []any:
			a.Value = slog.AnyValue(m.Data(val))
		case []byte:
			if s, ok := m.JSON(val); ok {
				a.Value = slog.StringValue(s)
			}
		default:
			if v, ok := m.scalar(a.Key, val); ok {
				a.Value = slog.AnyValue(v)
			}
		}
	default:
		if v, ok := m.scalar(a.Key, a.Value.Any()); ok {
			a.Value = slog.AnyValue(v)
		}
	}
	return a
}
