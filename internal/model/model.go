package model

import (
	"bytes"
	"encoding/json"

	"cloud.google.com/go/civil"
)

// Contact is the data structure for a person that we know.
// All fields with the exception of Note are always present.
type Contact struct {
	Id        int64      `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	BirthDate civil.Date `json:"birth_date"`
	Note      *string    `json:"note"`
}

// ContactCreate is the request body for creating a contact. The binding tags are evaluated by
// gin's validator when the request is bound.
type ContactCreate struct {
	FirstName string      `json:"first_name" binding:"required"`
	LastName  string      `json:"last_name"  binding:"required"`
	Email     string      `json:"email"      binding:"required,email"`
	Phone     string      `json:"phone"      binding:"required,phone"`
	BirthDate *civil.Date `json:"birth_date" binding:"required"`
	Note      *string     `json:"note"`
}

// ContactPatch is the request body for a partial update. A field that is missing in the JSON is
// left unchanged. A field that is explicitly null is cleared, which is only allowed for Note.
type ContactPatch struct {
	FirstName Optional[string]     `json:"first_name"`
	LastName  Optional[string]     `json:"last_name"`
	Email     Optional[string]     `json:"email"`
	Phone     Optional[string]     `json:"phone"`
	BirthDate Optional[civil.Date] `json:"birth_date"`
	Note      Optional[string]     `json:"note"`
}

// IsEmpty returns true if the patch would not change anything.
func (p ContactPatch) IsEmpty() bool {
	return !p.FirstName.Set && !p.LastName.Set && !p.Email.Set &&
		!p.Phone.Set && !p.BirthDate.Set && !p.Note.Set
}

// Optional distinguishes between a JSON field that is absent, one that is null, and one that
// carries a value. The zero value means absent.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional that carries a value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{Set: true, Value: value}
}

// Null returns an Optional that is explicitly null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON is only called by encoding/json if the field is present in the input.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns nil for an absent or null field, and a pointer to the value otherwise.
func (o Optional[T]) Ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}
