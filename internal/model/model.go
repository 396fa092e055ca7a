// Package model defines domain entities shared by the session, notification and contest layers.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// User is the minimal identity kept on the client after login. Server-issued
// profile fields are never retained.
type User struct {
	Email     string    `json:"email"`
	LoginTime time.Time `json:"loginTime"`
}

// Session is the authenticated identity and token currently held by the client.
// User is non-nil iff Token is non-empty.
type Session struct {
	Token string
	User  *User
}

// Authenticated reports whether a token is held.
func (s Session) Authenticated() bool { return s.Token != "" }

// Profile is the registration payload.
type Profile struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindInfo, KindWarning:
		return true
	}
	return false
}

// Notification is a transient user-facing message. TTL 0 means sticky.
// On the wire TTL is whole milliseconds under "ttl_ms".
type Notification struct {
	ID        uuid.UUID     `json:"id"`
	Message   string        `json:"message"`
	Kind      Kind          `json:"kind"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"-"`
}

type notificationJSON Notification

func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		notificationJSON
		TTL int64 `json:"ttl_ms"`
	}{notificationJSON(n), n.TTL.Milliseconds()})
}

func (n *Notification) UnmarshalJSON(b []byte) error {
	aux := struct {
		*notificationJSON
		TTL int64 `json:"ttl_ms"`
	}{notificationJSON: (*notificationJSON)(n)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	n.TTL = time.Duration(aux.TTL) * time.Millisecond
	return nil
}

// Contest is a single remote contest record as listed by the collaborator.
type Contest struct {
	ID         int64     `json:"contest_id"`
	Title      string    `json:"title"`
	ProfileImg string    `json:"profile_img,omitempty"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	IsPublic   bool      `json:"is_public"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	FirstName  string    `json:"first_name,omitempty"` // organizer
	LastName   string    `json:"last_name,omitempty"`
}

// IsActive reports whether now falls within [StartsAt, EndsAt].
func (c Contest) IsActive(now time.Time) bool {
	return !now.Before(c.StartsAt) && !now.After(c.EndsAt)
}

// Image is an optional binary attachment for a contest draft.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// ContestDraft is the client-side input for contest creation.
type ContestDraft struct {
	Title    string
	Image    *Image
	StartsAt time.Time
	EndsAt   time.Time
	IsPublic bool
}

// PageRequest selects a page of a remote collection.
type PageRequest struct {
	Page int
	Size int
}

// PageResult is one page of contests plus the collection total.
type PageResult struct {
	Items      []Contest `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	TotalPages int       `json:"total_pages"`
}

// Empty reports whether the collection has no items at all.
func (p PageResult) Empty() bool { return p.TotalPages == 0 }

// TotalPages returns ceil(total/size), or 0 for a non-positive size.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total-1)/size + 1
}

// ClampPage moves page into [1, totalPages]. With totalPages == 0 it returns 1.
func ClampPage(page, totalPages int) int {
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}
	return page
}
