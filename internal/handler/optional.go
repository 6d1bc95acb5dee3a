package handler

import (
	"bytes"
	"encoding/json"
)

// optionalString tells an absent JSON field apart from an explicit null.
// Set is true whenever the field was present; Value is nil for null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// ptr returns the field as an update value: nil when absent, a pointer to ""
// when cleared.
func (o optionalString) ptr() *string {
	if !o.Set {
		return nil
	}
	if o.Value == nil {
		empty := ""
		return &empty
	}
	return o.Value
}
