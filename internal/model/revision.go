package model

import (
	"fmt"
	"strings"
	"time"
)

// CategoryTarget is one unit of crawl work: a category of a domain inside a time window
type CategoryTarget struct {
	Domain   string    `json:"domain"`
	Category string    `json:"category"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Title returns the category title as the API expects it
func (t CategoryTarget) Title() string {
	return "Category:" + t.Category
}

// PageStub is a page listed by a category-membership query
type PageStub struct {
	PageID int64  `json:"pageid"`
	Title  string `json:"title"`
}

// RevisionRecord is one crawled revision paired with its parent's content.
// Records are written once to an append-only JSONL file and never mutated afterwards.
type RevisionRecord struct {
	RevID         int64  `json:"revid" validate:"required"`
	ParentID      int64  `json:"parentid" validate:"required"`
	PageID        int64  `json:"pageid" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Timestamp     string `json:"timestamp"`
	Minor         bool   `json:"minor,omitempty"`
	User          string `json:"user,omitempty"`
	Comment       string `json:"comment,omitempty"`
	CurContent    string `json:"cur_content" validate:"required"`
	ParentContent string `json:"parent_content" validate:"required"`
}

// NewRevisionRecord builds a record, rejecting revisions that lack either side of the pair
func NewRevisionRecord(page PageStub, meta RevisionMeta, cur, parent string) (RevisionRecord, error) {
	if meta.ParentID == 0 {
		return RevisionRecord{}, fmt.Errorf("revision %d has no parent", meta.RevID)
	}
	if strings.TrimSpace(cur) == "" {
		return RevisionRecord{}, fmt.Errorf("revision %d has empty content", meta.RevID)
	}
	if strings.TrimSpace(parent) == "" {
		return RevisionRecord{}, fmt.Errorf("revision %d has empty parent content", meta.RevID)
	}
	return RevisionRecord{
		RevID:         meta.RevID,
		ParentID:      meta.ParentID,
		PageID:        page.PageID,
		Title:         page.Title,
		Timestamp:     meta.Timestamp,
		Minor:         meta.Minor,
		User:          meta.User,
		Comment:       meta.Comment,
		CurContent:    cur,
		ParentContent: parent,
	}, nil
}

// RevisionMeta is the revision metadata returned by a per-page revision query
type RevisionMeta struct {
	RevID     int64  `json:"revid"`
	ParentID  int64  `json:"parentid"`
	Minor     bool   `json:"minor"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment"`
}

// ChainRevision is a cleaned revision pair as it enters deduplication
type ChainRevision struct {
	RevID          int64  `json:"revid"`
	Category       string `json:"category"`
	Timestamp      string `json:"timestamp"`
	Title          string `json:"title"`
	BeforeRevision string `json:"before_revision"`
	AfterRevision  string `json:"after_revision"`
}

// ChainEntry is one line of the merged chain file
type ChainEntry struct {
	DocID          string `json:"doc_id" validate:"required"`
	VersionDepth   int    `json:"version_depth" validate:"min=1"`
	BeforeRevision string `json:"before_revision"`
	AfterRevision  string `json:"after_revision"`
}

// DocumentKey namespaces a page id by domain
func DocumentKey(domain string, pageID int64) string {
	return fmt.Sprintf("%s-%d", domain, pageID)
}

// DocumentChain maps a document key to its ordered, deduplicated revisions
type DocumentChain map[string][]ChainRevision
