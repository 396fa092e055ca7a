package contests

import (
	"strings"

	"github.com/and161185/contest-shell/internal/errs"
	"github.com/and161185/contest-shell/internal/model"
)

// Validate checks a draft before anything is sent:
//   - title, starts_at and ends_at present
//   - starts_at strictly before ends_at
func Validate(d model.ContestDraft) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return errs.Validation("title", MsgRequiredFields)
	case d.StartsAt.IsZero():
		return errs.Validation("starts_at", MsgRequiredFields)
	case d.EndsAt.IsZero():
		return errs.Validation("ends_at", MsgRequiredFields)
	case !d.StartsAt.Before(d.EndsAt):
		return errs.Validation("ends_at", MsgEndBeforeStart)
	}
	return nil
}
