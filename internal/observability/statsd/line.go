package statsd

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// lineFormat renders metric lines: prefix.name:value|type|#k:v,...
type lineFormat struct {
	prefix     string
	globalTags map[string]string
}

func (f lineFormat) count(name string, value int64, tags map[string]string) string {
	return f.render(name, strconv.FormatInt(value, 10)+"|c", tags)
}

func (f lineFormat) gauge(name string, value float64, tags map[string]string) string {
	return f.render(name, formatFloat(value)+"|g", tags)
}

func (f lineFormat) timing(name string, value time.Duration, tags map[string]string) string {
	ms := float64(value) / float64(time.Millisecond)
	return f.render(name, formatFloat(ms)+"|ms", tags)
}

func (f lineFormat) render(name, payload string, tags map[string]string) string {
	metric := f.metricName(name)
	if metric == "" {
		return ""
	}
	return metric + ":" + payload + formatTags(f.globalTags, tags)
}

func (f lineFormat) metricName(name string) string {
	normalized := normalizeMetricName(name)
	switch {
	case normalized == "":
		return ""
	case f.prefix == "":
		return normalized
	default:
		return f.prefix + "." + normalized
	}
}

func sanitizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ".")
}

// normalizeMetricName maps spaces and slashes to underscores and collapses empty segments.
func normalizeMetricName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	n = strings.NewReplacer(" ", "_", "/", "_").Replace(n)

	parts := strings.Split(n, ".")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

func formatTags(global, local map[string]string) string {
	if len(global)+len(local) == 0 {
		return ""
	}

	merged := cloneTags(global)
	for k, v := range local {
		if key := strings.TrimSpace(k); key != "" {
			merged[key] = strings.TrimSpace(v)
		}
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(merged[k])
	}
	return b.String()
}

func cloneTags(tags map[string]string) map[string]string {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			cp[key] = strings.TrimSpace(v)
		}
	}
	return cp
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
