package records

import (
	"math"
	"net/mail"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// Shape converts an internal value into the form expected by prop.Kind.
// It is total: every combination of value type and kind yields either a
// shaped Value or ok=false, in which case the field is skipped.
//
// Internal values are string, []string, bool, int, int64, float64,
// time.Time, FileRef and Link.
func Shape(v any, prop Property) (Value, bool) {
	out := Value{Kind: prop.Kind, Native: prop.Native}
	switch prop.Kind {
	case KindTitle, KindText:
		s, ok := asText(v)
		if !ok {
			return Value{}, false
		}
		out.Text = s
	case KindNumber:
		n, ok := asNumber(v)
		if !ok {
			return Value{}, false
		}
		out.Number = n
	case KindCheckbox:
		b, ok := asBool(v)
		if !ok {
			return Value{}, false
		}
		out.Bool = b
	case KindDate:
		t, ok := asTime(v)
		if !ok {
			return Value{}, false
		}
		out.Time = t
	case KindURL:
		s, ok := asURL(v)
		if !ok {
			return Value{}, false
		}
		out.Text = s
	case KindEmail:
		s, ok := asText(v)
		if !ok {
			return Value{}, false
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return Value{}, false
		}
		out.Text = s
	case KindSelect:
		opts := asOptions(v)
		if len(opts) == 0 {
			return Value{}, false
		}
		out.Options = opts[:1]
	case KindMultiSelect:
		opts := asOptions(v)
		if len(opts) == 0 {
			return Value{}, false
		}
		out.Options = opts
	case KindFiles:
		f, ok := asFile(v)
		if !ok {
			return Value{}, false
		}
		out.Files = []FileRef{f}
	case KindRelation:
		l, ok := v.(Link)
		if !ok || len(l) == 0 {
			return Value{}, false
		}
		out.Relations = append([]string(nil), l...)
	default:
		return Value{}, false
	}
	return out, true
}

func asText(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []string:
		s = strings.Join(nonEmpty(x), ", ")
	case bool:
		s = strconv.FormatBool(x)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		s = x.UTC().Format(time.RFC3339)
	case FileRef:
		s = x.URL
	case Link:
		s = strings.Join(x, ", ")
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case time.Time:
		if x.IsZero() {
			return 0, false
		}
		return float64(x.UnixMilli()), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off":
			return false, true
		}
	case int:
		return x != 0, true
	case int64:
		return x != 0, true
	case float64:
		return x != 0, true
	}
	return false, false
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func asURL(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case FileRef:
		s = x.URL
	default:
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return s, true
}

func asOptions(v any) []string {
	switch x := v.(type) {
	case []string:
		return dedupe(nonEmpty(x))
	case bool:
		if x {
			return []string{"Yes"}
		}
		return []string{"No"}
	}
	if s, ok := asText(v); ok {
		return []string{s}
	}
	return nil
}

func asFile(v any) (FileRef, bool) {
	switch x := v.(type) {
	case FileRef:
		if _, ok := asURL(x.URL); !ok {
			return FileRef{}, false
		}
		if x.Name == "" {
			x.Name = fileName(x.URL)
		}
		return x, true
	case string:
		s, ok := asURL(x)
		if !ok {
			return FileRef{}, false
		}
		return FileRef{Name: fileName(s), URL: s}, true
	}
	return FileRef{}, false
}

func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
