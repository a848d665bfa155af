package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/codewave/panel/internal/models"
)

// FormatAnalysis turns the analysis value of a result into display text.
// Strings pass through, objects with a truthy "output" field yield that
// field, anything else is rendered as two-space indented JSON. Values that
// cannot be rendered yield "Analysis results".
func FormatAnalysis(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return models.MsgAnalysisFallback
	}

	if m, ok := v.(map[string]any); ok {
		if out, ok := m["output"]; ok && truthy(out) {
			return toText(out)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return models.MsgAnalysisFallback
	}
	return string(data)
}

// truthy follows JSON-ish truthiness: nil, false, 0, "" and NaN are false.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0 && !math.IsNaN(val)
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	default:
		return true
	}
}

// toText renders a scalar or nested value as plain text.
func toText(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return models.MsgAnalysisFallback
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
