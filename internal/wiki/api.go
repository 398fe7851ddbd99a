package wiki

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/ppiankov/wikiedits/internal/cache"
	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/model"
)

// zero falls back to each cache layer's default TTL
const contentTTL = 0

type queryResponse struct {
	Continue struct {
		Gcmcontinue string `json:"gcmcontinue"`
	} `json:"continue"`
	Query struct {
		Pages []apiPage `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

type apiPage struct {
	PageID    int64         `json:"pageid"`
	Title     string        `json:"title"`
	Missing   bool          `json:"missing"`
	Revisions []apiRevision `json:"revisions"`
}

type apiRevision struct {
	RevID     int64  `json:"revid"`
	ParentID  int64  `json:"parentid"`
	Minor     bool   `json:"minor"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment"`
	Slots     struct {
		Main struct {
			Content string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}

// MembersQuery describes one step of a paginated category-membership query
type MembersQuery struct {
	Title string
	// Continue is the token of the previous step; empty on the first call
	Continue string
	// Anchor bounds the first call when no token is present
	Anchor time.Time
	// SortByTimestamp requests newest-first ordering
	SortByTimestamp bool
	Limit           int
}

// MembersPage is one batch of category members
type MembersPage struct {
	Pages    []model.PageStub
	Continue string
}

func baseParams() url.Values {
	v := url.Values{}
	v.Set("action", "query")
	v.Set("formatversion", "2")
	v.Set("format", "json")
	return v
}

// MembersParams builds the query parameters of one membership step
func MembersParams(q MembersQuery) url.Values {
	v := baseParams()
	v.Set("generator", "categorymembers")
	v.Set("gcmtitle", q.Title)
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	v.Set("gcmlimit", strconv.Itoa(limit))
	if q.Continue != "" {
		v.Set("gcmcontinue", q.Continue)
	} else if !q.Anchor.IsZero() {
		v.Set("gcmstart", q.Anchor.UTC().Format(time.RFC3339))
	}
	if q.SortByTimestamp {
		v.Set("gcmsort", "timestamp")
		v.Set("gcmdir", "desc")
	}
	return v
}

// CategoryMembers fetches one batch of pages in a category
func (c *Client) CategoryMembers(ctx context.Context, q MembersQuery) (MembersPage, error) {
	resp, err := c.query(ctx, MembersParams(q))
	if err != nil {
		return MembersPage{}, err
	}

	out := MembersPage{Continue: resp.Continue.Gcmcontinue}
	for _, p := range resp.Query.Pages {
		if p.Missing || p.PageID == 0 {
			continue
		}
		out.Pages = append(out.Pages, model.PageStub{PageID: p.PageID, Title: p.Title})
	}
	return out, nil
}

// Revisions returns metadata of the most recent limit revisions of a page
func (c *Client) Revisions(ctx context.Context, pageID int64, limit int) ([]model.RevisionMeta, error) {
	v := baseParams()
	v.Set("prop", "revisions")
	v.Set("pageids", strconv.FormatInt(pageID, 10))
	v.Set("rvlimit", strconv.Itoa(limit))

	resp, err := c.query(ctx, v)
	if err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, perr.JSONErrf("no page in revisions response for %d", pageID)
	}

	revs := resp.Query.Pages[0].Revisions
	out := make([]model.RevisionMeta, 0, len(revs))
	for _, r := range revs {
		out = append(out, model.RevisionMeta{
			RevID:     r.RevID,
			ParentID:  r.ParentID,
			Minor:     r.Minor,
			User:      r.User,
			Timestamp: r.Timestamp,
			Comment:   r.Comment,
		})
	}
	return out, nil
}

// RevisionContent returns the plain text of a revision, stripped of wiki markup
func (c *Client) RevisionContent(ctx context.Context, revID int64) (string, error) {
	key := cache.ContentKey(c.opts.APIURL, revID)
	if c.cache != nil {
		if b, ok := c.cache.Get(key); ok {
			return string(b), nil
		}
	}

	v := baseParams()
	v.Set("prop", "revisions")
	v.Set("revids", strconv.FormatInt(revID, 10))
	v.Set("rvslots", "main")
	v.Set("rvprop", "content")

	resp, err := c.query(ctx, v)
	if err != nil {
		return "", err
	}
	if len(resp.Query.Pages) == 0 || len(resp.Query.Pages[0].Revisions) == 0 {
		return "", perr.JSONErrf("no content for revision %d", revID)
	}

	text := StripMarkup(resp.Query.Pages[0].Revisions[0].Slots.Main.Content)
	if c.cache != nil && text != "" {
		if err := c.cache.Set(key, []byte(text), contentTTL); err != nil {
			c.log.Debug().Err(err).Int64("revid", revID).Msg("cache write failed")
		}
	}
	return text, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*queryResponse, error) {
	body, err := c.Get(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode api response")
	}
	if resp.Error != nil {
		return nil, perr.Newf(perr.ErrorCodeJSON, "api error %s: %s", resp.Error.Code, resp.Error.Info)
	}
	return &resp, nil
}
