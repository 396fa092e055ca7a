// Package contests is the resource client for the remote contest collection:
// paginated listing and validated creation.
package contests

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/contest-shell/internal/convert"
	"github.com/and161185/contest-shell/internal/errs"
	"github.com/and161185/contest-shell/internal/model"
	"github.com/and161185/contest-shell/internal/transport"
)

// DefaultPageSize is used when ListPage gets a non-positive size.
const DefaultPageSize = 10

// User-facing messages.
const (
	MsgLoadFailed       = "Failed to load contests"
	MsgLoadOneFailed    = "Failed to load contest"
	MsgCreateFailed     = "Failed to create contest"
	MsgCreated          = "Contest created successfully!"
	MsgRequiredFields   = "Please fill in all required fields"
	MsgEndBeforeStart   = "End date must be after start date"
	MsgInvalidContestID = "Invalid contest id"
)

// Remote is the part of the HTTP collaborator the client talks to.
type Remote interface {
	Get(ctx context.Context, path string, query url.Values) (*transport.Envelope, error)
	PostMultipart(ctx context.Context, path string, f *transport.Form) (*transport.Envelope, error)
}

// Client fetches and creates contests. Requests are fire-once; concurrent
// ListPage calls are neither coalesced nor cancelled by each other.
type Client struct {
	remote Remote
	log    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a Client.
func New(remote Remote, opts ...Option) *Client {
	c := &Client{remote: remote, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListPage fetches one page of public contests. Pages below 1 are served as
// page 1; pages past the end are served as the last page (one extra request
// once the total is known). An empty collection yields TotalPages == 0.
func (c *Client) ListPage(ctx context.Context, page, size int) (model.PageResult, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = model.ClampPage(page, 0)

	rows, total, err := c.fetch(ctx, page, size)
	if err != nil {
		return model.PageResult{}, err
	}
	pages := model.TotalPages(total, size)

	if pages > 0 && page > pages {
		c.log.Debug("page out of range, serving last page",
			zap.Int("requested", page),
			zap.Int("pages", pages),
		)
		page = pages
		rows, total, err = c.fetch(ctx, page, size)
		if err != nil {
			return model.PageResult{}, err
		}
		pages = model.TotalPages(total, size)
		page = model.ClampPage(page, pages)
	}

	if pages == 0 {
		return model.PageResult{Items: []model.Contest{}, Page: 1, Size: size}, nil
	}
	return model.PageResult{
		Items:      rows,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: pages,
	}, nil
}

func (c *Client) fetch(ctx context.Context, page, size int) ([]model.Contest, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(size))
	env, err := c.remote.Get(ctx, "/contests/public", q)
	if err != nil {
		c.log.Info("list contests failed", zap.String("kind", errs.Kind(err)), zap.Error(err))
		return nil, 0, errs.WithFallback(err, MsgLoadFailed)
	}
	rows, total, err := convert.FromWirePage(env.Data)
	if err != nil {
		return nil, 0, errs.Transport(MsgLoadFailed, err)
	}
	return rows, total, nil
}

// Get fetches a single contest by id.
func (c *Client) Get(ctx context.Context, id int64) (model.Contest, error) {
	if id <= 0 {
		return model.Contest{}, errs.Validation("contest_id", MsgInvalidContestID)
	}
	env, err := c.remote.Get(ctx, fmt.Sprintf("/contests/%d", id), nil)
	if err != nil {
		return model.Contest{}, errs.WithFallback(err, MsgLoadOneFailed)
	}
	ct, err := convert.FromWireContest(env.Data)
	if err != nil {
		return model.Contest{}, errs.Transport(MsgLoadOneFailed, err)
	}
	return ct, nil
}

// Create validates the draft locally and, only if it passes, submits it as a
// multipart form. It does not touch any previously fetched page; callers
// refetch explicitly.
func (c *Client) Create(ctx context.Context, d model.ContestDraft) (model.Contest, error) {
	d.Title = strings.TrimSpace(d.Title)
	if err := Validate(d); err != nil {
		return model.Contest{}, err
	}

	env, err := c.remote.PostMultipart(ctx, "/contests", convert.ToWireForm(d))
	if err != nil {
		c.log.Info("create contest failed", zap.String("kind", errs.Kind(err)), zap.Error(err))
		return model.Contest{}, errs.WithFallback(err, MsgCreateFailed)
	}

	ct, err := convert.FromWireContest(env.Data)
	if err != nil {
		// created on the server; echo the draft rather than report a failure
		c.log.Debug("create response without contest body", zap.Error(err))
		ct = model.Contest{Title: d.Title, StartsAt: d.StartsAt, EndsAt: d.EndsAt, IsPublic: d.IsPublic}
	}
	return ct, nil
}
