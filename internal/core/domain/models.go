package domain

import (
	"strconv"
	"strings"
	"time"
)

// WorkflowKind names the action a ledger entry belongs to. Each kind has its
// own identifier namespace so a mention replied to is not mistaken for a
// tweet that was liked.
type WorkflowKind string

const (
	KindPost  WorkflowKind = "post"
	KindReply WorkflowKind = "reply"
	KindQuote WorkflowKind = "quote"
	KindLike  WorkflowKind = "like"
)

// Kinds lists every workflow kind in a stable order.
func Kinds() []WorkflowKind {
	return []WorkflowKind{KindPost, KindReply, KindQuote, KindLike}
}

// Valid reports whether k is one of the known kinds.
func (k WorkflowKind) Valid() bool {
	switch k {
	case KindPost, KindReply, KindQuote, KindLike:
		return true
	}
	return false
}

// ActedItem is one remote item that a workflow already acted upon.
type ActedItem struct {
	Kind       WorkflowKind
	ItemID     string
	RecordedAt time.Time
}

// CandidateItem is a remote post fetched for possible action. It lives only
// for one workflow run.
type CandidateItem struct {
	ID             string
	AuthorID       string
	AuthorUsername string
	Text           string
	CreatedAt      time.Time
}

// Before orders candidates oldest first: by creation time when both carry
// one, otherwise by snowflake id, which is time-ordered.
func (c CandidateItem) Before(other CandidateItem) bool {
	if !c.CreatedAt.IsZero() && !other.CreatedAt.IsZero() && !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return compareIDs(c.ID, other.ID) < 0
}

func compareIDs(a, b string) int {
	ai, aErr := strconv.ParseUint(a, 10, 64)
	bi, bErr := strconv.ParseUint(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// GeneratedText is the output of the content generator. An empty Body means
// generation failed.
type GeneratedText struct {
	Body string
	Mood Mood
}

// Empty reports whether generation produced nothing usable.
func (g GeneratedText) Empty() bool {
	return strings.TrimSpace(g.Body) == ""
}

// OwnPost is a post authored by the authenticated account, used to rebuild
// ledger entries for actions whose record was lost.
type OwnPost struct {
	ID          string
	Text        string
	InReplyToID string
	QuotedID    string
}

// UserID identifies an account on the social platform.
type UserID string
