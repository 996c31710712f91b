package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one element of a collection: a required ID plus open fields.
// Its JSON form is a flat object {"id": ..., <fields>}.
type Record struct {
	ID     string
	Fields map[string]any
}

// NewRecord builds a record from id and fields. The fields map is copied.
func NewRecord(id string, fields map[string]any) Record {
	r := Record{ID: id, Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		r.Fields[k] = v
	}
	return r
}

// String returns the field value for key if it is a string.
func (r Record) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["id"] = r.ID
	return json.Marshal(flat)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are kept as
// json.Number so that values survive a round trip unchanged.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var flat map[string]any
	if err := dec.Decode(&flat); err != nil {
		return err
	}
	id, ok := flat["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("record has no string id")
	}
	delete(flat, "id")

	r.ID = id
	r.Fields = flat
	return nil
}

func decodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}
