package model

import (
	"bytes"
	"encoding/json"
)

// ObjectID is a reference the backend sends either as a bare id string or as
// a populated document carrying `_id`.
type ObjectID string

// UnmarshalJSON implements the json.Unmarshaler interface for ObjectID.
func (id *ObjectID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ObjectID(s)
		return nil
	}
	var doc struct {
		ID      string `json:"id"`
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*id = ObjectID(firstNonEmpty(doc.ID, doc.MongoID))
	return nil
}

// UserRef is a user reference embedded in another document. Depending on the
// endpoint it is populated with name and email or carries only the id.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UnmarshalJSON implements the json.Unmarshaler interface for UserRef.
func (r *UserRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = UserRef{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = UserRef{ID: s}
		return nil
	}
	*r = UserRef{}
	type alias UserRef
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ID = firstNonEmpty(r.ID, aux.MongoID)
	return nil
}

// Label returns the most readable identifier available.
func (r UserRef) Label() string {
	return firstNonEmpty(r.Name, r.Email, r.ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
