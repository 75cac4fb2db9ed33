// Package model contains the JSON representation of a contact for Go clients of the service.
package model

// Contact is the data structure for a person that we know, as sent over the wire.
// All fields with the exception of the Id field are optional, so that the same type can be used
// for creating, partially updating and reading contacts. BirthDate has the format YYYY-MM-DD.
type Contact struct {
	Id        int64   `json:"id,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	Note      *string `json:"note,omitempty"`
}
