package models

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes "not provided" (Set == false) from "explicitly
// cleared" (Set == true, Value == nil) in partial updates.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

// Ptr returns the value as an untyped nil when cleared so SQL drivers write NULL.
func (o Optional[T]) Ptr() any {
	if o.Value == nil {
		return nil
	}
	return *o.Value
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
