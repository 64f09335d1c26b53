package fakestore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type sortSpec struct {
	field string
	desc  bool
}

var sortParam = regexp.MustCompile(`^sort\[(\d+)\]\[(field|direction)\]$`)

func parseSorts(q map[string][]string) []sortSpec {
	byIndex := map[int]*sortSpec{}
	maxIndex := -1
	for key, values := range q {
		m := sortParam.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		i, _ := strconv.Atoi(m[1])
		spec := byIndex[i]
		if spec == nil {
			spec = &sortSpec{}
			byIndex[i] = spec
		}
		if m[2] == "field" {
			spec.field = first(values)
		} else {
			spec.desc = strings.EqualFold(first(values), "desc")
		}
		maxIndex = max(maxIndex, i)
	}
	var out []sortSpec
	for i := 0; i <= maxIndex; i++ {
		if spec := byIndex[i]; spec != nil && spec.field != "" {
			out = append(out, *spec)
		}
	}
	return out
}

// compareValues orders numbers numerically and everything else by its
// string form. Missing values sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if an, ok := a.(float64); ok {
		if bn, ok := b.(float64); ok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// normalizeFields gives seeded Go values the shapes a JSON round trip
// would produce.
func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case int:
			out[k] = float64(t)
		case int64:
			out[k] = float64(t)
		case []string:
			arr := make([]any, len(t))
			for i, s := range t {
				arr[i] = s
			}
			out[k] = arr
		default:
			out[k] = v
		}
	}
	return out
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if arr, ok := v.([]any); ok {
			out[k] = append([]any(nil), arr...)
			continue
		}
		out[k] = v
	}
	return out
}
