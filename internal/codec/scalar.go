package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// yamlSpecial lists characters that force a string scalar into quoted style.
const yamlSpecial = ":#{}[]&*!|>'\"%@`,\n\t"

// needsQuote reports whether a string value must be quoted to survive a
// YAML round trip unchanged.
func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if strings.TrimSpace(s) != s {
		return true
	}
	if strings.ContainsAny(s, yamlSpecial) {
		return true
	}
	if strings.HasPrefix(s, "- ") || strings.HasPrefix(s, "? ") {
		return true
	}
	// Literals that would re-parse as a different type stay strings only
	// when quoted.
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no", "on", "off", "null", "~":
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return false
}

// renderScalar renders one frontmatter value as an inline YAML scalar,
// quoting with escapes where required. Arrays render inline as [a, b, c];
// nested maps render in flow style with sorted keys.
func renderScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		if needsQuote(t) {
			return strconv.Quote(t)
		}
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		items := make([]string, len(t))
		for i, item := range t {
			items[i] = renderScalar(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case []string:
		items := make([]string, len(t))
		for i, item := range t {
			items[i] = renderScalar(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = fmt.Sprintf("%s: %s", k, renderScalar(t[k]))
		}
		return "{" + strings.Join(items, ", ") + "}"
	default:
		return strconv.Quote(fmt.Sprint(t))
	}
}

// stripQuotes removes one layer of matching single or double quotes from a
// raw scanned value. Double-quoted values get escape processing.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return unq
		}
		return s[1 : len(s)-1]
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
