package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelMethod     = "method"
	ProfilingLabelRoute      = "route"
	ProfilingLabelCollection = "collection"
	ProfilingLabelOperation  = "operation"
)

// MaxLabelValueLength caps label values so a long route cannot bloat the
// profile index.
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels. Each distinct
// value would create its own profile series.
var HighCardinalityLabels = map[string]bool{
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
	"session_id": true,
	"product_id": true,
	"user_id":    true,
}

// WithProfilingLabels runs fn with the given labels attached to every
// sample taken while it executes. With no usable labels fn runs as is.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels drops empty and high-cardinality labels, truncates long
// values and returns key/value pairs sorted by key.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		sanitized := sanitizeLabelKey(key)
		if sanitized == "" {
			continue
		}
		pairs = append(pairs, sanitized, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases the key and keeps only [a-z0-9_].
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		}
	}
	return string(out)
}

// HTTPRequestLabels builds the standard label set for a storefront request.
func HTTPRequestLabels(method, route, collection string) map[string]string {
	labels := make(map[string]string, 3)
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if collection != "" {
		labels[ProfilingLabelCollection] = collection
	}
	return labels
}
