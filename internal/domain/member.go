// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxDisplayNameLen = 36

// Member is one participant of a room. Names are not unique.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewMember validates the display name; id is the transport session id.
func NewMember(id, name string) (Member, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return Member{}, ErrDisplayNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return Member{}, ErrDisplayNameTooLong
	}
	return Member{ID: id, Name: name}, nil
}
