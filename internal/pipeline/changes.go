package pipeline

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// SnapshotsEqual compares two raw snapshots by deep structural equality.
// Snapshots cross a JSON decode on the way in and a BSON decode on the way
// back out, which changes container and numeric types without changing the
// value; both sides are normalized before comparison.
func SnapshotsEqual(a, b model.Snapshot) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize rewrites a decoded snapshot value into canonical Go types:
// map[string]interface{} containers, []interface{} sequences and float64
// numbers.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		return normalizeMap(t)
	case map[string]interface{}:
		return normalizeMap(t)
	case primitive.A:
		return normalizeSlice(t)
	case []interface{}:
		return normalizeSlice(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = normalize(v)
	}
	return out
}
