/*
Package user contains the client-side representation of a GYMbro user.

Summary is the cached identity the session owns. It is replaced wholesale whenever the
profile is edited, never patched field by field.
*/
package user

import "encoding/json"

// Summary represents the basic identity information of a GYMbro user.
// Fields use JSON tags matching the backend's user objects.
type Summary struct {

	// ID is the unique identifier assigned by the backend.
	ID string `json:"id"`

	// Username is the display handle.
	Username string `json:"username"`

	// ProfilePicture is the URL of the user's avatar, if one was uploaded.
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Valid reports whether the summary identifies a user.
func (s *Summary) Valid() bool {
	return s != nil && s.ID != ""
}

// Clone returns an independent copy of s.
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// UnmarshalJSON accepts both "id" and the document-style "_id" the backend emits for users.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type plain Summary
	var aux struct {
		plain
		DocID string `json:"_id"`
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*s = Summary(aux.plain)
	if s.ID == "" {
		s.ID = aux.DocID
	}
	return nil
}
