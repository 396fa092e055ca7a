// Package convert maps collaborator wire payloads to domain models and back.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/contest-shell/internal/model"
	"github.com/and161185/contest-shell/internal/transport"
)

// ISOLayout matches JavaScript's Date.toISOString (UTC, milliseconds).
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// --- helpers ---

// ISO formats t the way the collaborator expects timestamps.
func ISO(t time.Time) string { return t.UTC().Format(ISOLayout) }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 and the common SQL/datetime-local shapes.
// Zone-less values are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func isNull(raw json.RawMessage) bool {
	r := bytes.TrimSpace(raw)
	return len(r) == 0 || bytes.Equal(r, []byte("null"))
}

// flexInt decodes 7, "7" or null.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var n json.Number
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n = json.Number(s)
	} else {
		n = json.Number(bytes.TrimSpace(b))
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	*f = flexInt(v)
	return nil
}

// flexBool decodes true, "true", 1 or "1".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("not a boolean: %s", b)
	}
	*f = flexBool(v)
	return nil
}

// flexTime decodes an ISO/SQL timestamp string or null.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*f = flexTime(t)
	return nil
}

// --- Contest (server -> client) ---

type wireContest struct {
	ID         flexInt  `json:"contest_id"`
	Title      string   `json:"title"`
	ProfileImg string   `json:"profile_img"`
	StartsAt   flexTime `json:"starts_at"`
	EndsAt     flexTime `json:"ends_at"`
	IsPublic   flexBool `json:"is_public"`
	CreatedAt  flexTime `json:"created_at"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
}

func (w wireContest) model() model.Contest {
	return model.Contest{
		ID:         int64(w.ID),
		Title:      w.Title,
		ProfileImg: w.ProfileImg,
		StartsAt:   time.Time(w.StartsAt),
		EndsAt:     time.Time(w.EndsAt),
		IsPublic:   bool(w.IsPublic),
		CreatedAt:  time.Time(w.CreatedAt),
		FirstName:  w.FirstName,
		LastName:   w.LastName,
	}
}

// FromWireContest decodes a single contest object.
func FromWireContest(raw json.RawMessage) (model.Contest, error) {
	if isNull(raw) {
		return model.Contest{}, fmt.Errorf("empty contest payload")
	}
	var w wireContest
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Contest{}, fmt.Errorf("decode contest: %w", err)
	}
	return w.model(), nil
}

// FromWirePage decodes {rows:[...], total}. Missing rows/total read as empty/0.
func FromWirePage(raw json.RawMessage) ([]model.Contest, int, error) {
	if isNull(raw) {
		return []model.Contest{}, 0, nil
	}
	var w struct {
		Rows  []wireContest `json:"rows"`
		Total flexInt       `json:"total"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, 0, fmt.Errorf("decode page: %w", err)
	}
	if w.Total < 0 {
		return nil, 0, fmt.Errorf("negative total %d", w.Total)
	}
	out := make([]model.Contest, 0, len(w.Rows))
	for _, r := range w.Rows {
		out = append(out, r.model())
	}
	return out, int(w.Total), nil
}

// --- Draft (client -> server) ---

// ToWireForm packs a draft into the multipart form the collaborator accepts.
func ToWireForm(d model.ContestDraft) *transport.Form {
	f := new(transport.Form).
		Add("title", d.Title).
		Add("starts_at", ISO(d.StartsAt)).
		Add("ends_at", ISO(d.EndsAt)).
		Add("is_public", strconv.FormatBool(d.IsPublic))
	if d.Image != nil && len(d.Image.Data) > 0 {
		name := d.Image.Name
		if name == "" {
			name = "profile_img"
		}
		f.AddFile("profile_img", name, d.Image.ContentType, d.Image.Data)
	}
	return f
}

// --- Auth ---

// LoginRequest is the POST /users/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the POST /users/register body.
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// ToWireRegister converts a profile to its wire form.
func ToWireRegister(p model.Profile) RegisterRequest {
	return RegisterRequest{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, Password: p.Password}
}

// FromWireToken extracts data.token from a login response. "" if absent.
func FromWireToken(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var w struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", fmt.Errorf("decode login data: %w", err)
	}
	return w.Token, nil
}
