package staging

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are tried in order when parsing payload timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02",
	"20060102",
}

// lookup walks a dotted path through nested objects. A flat key containing
// the dots ("segments.date") is accepted as well, since some exports flatten
// the report columns.
func lookup(data map[string]interface{}, path string) (interface{}, bool) {
	if v, ok := data[path]; ok {
		return v, v != nil
	}
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return nil, false
	}
	child, ok := data[head].(map[string]interface{})
	if !ok {
		return nil, false
	}
	return lookup(child, rest)
}

// str returns the value at path rendered as a trimmed string. Numeric ids
// decoded as float64 are rendered without exponent or trailing zeros.
func str(data map[string]interface{}, path string) string {
	v, ok := lookup(data, path)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return ""
}

func object(data map[string]interface{}, path string) map[string]interface{} {
	v, ok := lookup(data, path)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

func list(data map[string]interface{}, path string) []interface{} {
	v, ok := lookup(data, path)
	if !ok {
		return nil
	}
	l, _ := v.([]interface{})
	return l
}

// parseTimestamp parses a payload timestamp and normalizes it to UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp missing")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseDate parses a calendar date, dropping any time of day.
func parseDate(s string) (time.Time, error) {
	t, err := parseTimestamp(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// count parses a non-negative integer metric. Absent values count as zero.
func count(data map[string]interface{}, path string) (int64, error) {
	s := str(data, path)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%s: invalid count %q", path, s)
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s: negative count %d", path, n)
	}
	return n, nil
}
