package types

// JSONMap stores an arbitrary JSON object; columns using it are tagged serializer:json.
type JSONMap map[string]any

// Clone returns a shallow copy so callers can add keys without aliasing.
func (j JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}
