package zoominfo

import (
	"bytes"
	"encoding/json"
)

// SearchResponse is the company search payload. Candidates are in API order.
type SearchResponse struct {
	Companies []Company `json:"companies"`
}

// Company is one search candidate. Every field may be absent.
type Company struct {
	Website       Field     `json:"website"`
	Industry      Field     `json:"industry"`
	Revenue       Field     `json:"revenue"`
	EmployeeCount Field     `json:"employeeCount"`
	HQLocation    *Location `json:"hqLocation"`
}

// Location is the nested headquarters object.
type Location struct {
	City Field `json:"city"`
}

// HQCity returns the headquarters city, or nil when either the location or the
// city is absent.
func (c Company) HQCity() *string {
	if c.HQLocation == nil {
		return nil
	}
	return c.HQLocation.City.Ptr()
}

// Field is a nullable scalar. Strings are kept verbatim; numbers and booleans keep
// their JSON text (revenue and employee counts arrive as either).
type Field struct {
	value string
	set   bool
}

// NewField returns a present field holding v.
func NewField(v string) Field {
	return Field{value: v, set: true}
}

// Ptr returns nil for an absent or null field.
func (f Field) Ptr() *string {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

func (f *Field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = Field{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = NewField(s)
		return nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, b); err != nil {
		return err
	}
	*f = NewField(compact.String())
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
