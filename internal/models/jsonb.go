package models

// JSONB represents a PostgreSQL JSONB document
type JSONB map[string]interface{}

// StringField returns the named field as a string, or "" when absent
// or not a string.
func (j JSONB) StringField(name string) string {
	if j == nil {
		return ""
	}
	if v, ok := j[name].(string); ok {
		return v
	}
	return ""
}
