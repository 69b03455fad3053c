package twitter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/config"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/logging"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := newClient(srv.URL, srv.Client(), srv.Client(), logging.Discard())
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestIdentifySelf(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		writeJSON(w, 200, map[string]any{"data": map[string]string{"id": "12", "username": "me"}})
	}))

	id, err := c.IdentifySelf(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("12"), id)
}

func TestSearch_ClampsAndTrims(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "#python -is:retweet lang:en", r.URL.Query().Get("query"))
		assert.Equal(t, "10", r.URL.Query().Get("max_results"))
		writeJSON(w, 200, map[string]any{
			"data": []map[string]string{
				{"id": "3", "text": "c", "author_id": "a1"},
				{"id": "2", "text": "b", "author_id": "a2"},
				{"id": "1", "text": "a", "author_id": "a1"},
			},
			"includes": map[string]any{"users": []map[string]string{{"id": "a1", "username": "alice"}}},
		})
	}))

	items, err := c.Search(context.Background(), "#python -is:retweet lang:en", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "3", items[0].ID)
	assert.Equal(t, "alice", items[0].AuthorUsername)
	assert.Equal(t, "", items[1].AuthorUsername, "unresolved authors stay empty")
}

func TestSearch_FailureIsFetchError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]string{"title": "Unauthorized", "detail": "Unauthorized"})
	}))

	_, err := c.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Contains(t, err.Error(), "status 401")
}

func TestFetchMentions(t *testing.T) {
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/12/mentions", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		assert.Equal(t, "author_id", r.URL.Query().Get("expansions"))
		writeJSON(w, 200, map[string]any{
			"data": []map[string]any{
				{"id": "100", "text": "@me hi", "author_id": "a1", "created_at": created.Format(time.RFC3339)},
			},
			"includes": map[string]any{"users": []map[string]string{{"id": "a1", "username": "alice"}}},
		})
	}))

	items, err := c.FetchMentions(context.Background(), "12", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.CandidateItem{
		ID: "100", AuthorID: "a1", AuthorUsername: "alice", Text: "@me hi", CreatedAt: created,
	}, items[0])
}

func TestLookupUsername(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/a1":
			writeJSON(w, 200, map[string]any{"data": map[string]string{"id": "a1", "username": "alice"}})
		default:
			writeJSON(w, 200, map[string]any{"errors": []map[string]string{{"detail": "Could not find user"}}})
		}
	}))

	name, err := c.LookupUsername(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = c.LookupUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Contains(t, err.Error(), "Could not find user")
}

func TestCreateTweetVariants(t *testing.T) {
	var got []CreateTweetRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tweets", r.URL.Path)
		var req CreateTweetRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		writeJSON(w, 201, map[string]any{"data": map[string]string{"id": strconv.Itoa(len(got)), "text": req.Text}})
	}))
	ctx := context.Background()

	id, err := c.Post(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	_, err = c.Reply(ctx, "@alice hi", "100")
	require.NoError(t, err)

	_, err = c.Quote(ctx, "look", "200")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Nil(t, got[0].Reply)
	assert.Equal(t, "100", got[1].Reply.InReplyToTweetID)
	assert.Equal(t, "200", got[2].QuoteTweetID)
}

func TestPost_RejectedIsWriteError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]any{
			"title":  "Forbidden",
			"detail": "You are not allowed to create a Tweet with duplicate content.",
		})
	}))

	_, err := c.Post(context.Background(), "again")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWrite)
	assert.Contains(t, err.Error(), "duplicate content")
}

func TestLike(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/12/likes", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"tweet_id":"300"}`, string(body))
		writeJSON(w, 200, map[string]any{"data": map[string]bool{"liked": true}})
	}))

	require.NoError(t, c.Like(context.Background(), "12", "300"))
}

func TestRateLimitRetries(t *testing.T) {
	var calls atomic.Int32
	var waited []time.Duration
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("x-rate-limit-reset", "1000030")
			writeJSON(w, 429, map[string]string{"title": "Too Many Requests"})
			return
		}
		writeJSON(w, 201, map[string]any{"data": map[string]string{"id": "9"}})
	}))
	c.now = func() time.Time { return time.Unix(1000000, 0) }
	c.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	id, err := c.Post(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "9", id)
	assert.Equal(t, []time.Duration{30 * time.Second}, waited)
}

func TestRateLimitGivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 429, map[string]string{"title": "Too Many Requests"})
	}))

	_, err := c.Post(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrWrite)
	assert.Equal(t, int32(maxRateLimitRetries+1), calls.Load())
}

func TestRecentPosts_References(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/12/tweets", r.URL.Path)
		writeJSON(w, 200, map[string]any{"data": []map[string]any{
			{"id": "1", "text": "@a hi", "referenced_tweets": []map[string]string{{"type": "replied_to", "id": "100"}}},
			{"id": "2", "text": "look", "referenced_tweets": []map[string]string{{"type": "quoted", "id": "200"}}},
			{"id": "3", "text": "plain"},
		}})
	}))

	posts, err := c.RecentPosts(context.Background(), "12", 10)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "100", posts[0].InReplyToID)
	assert.Equal(t, "200", posts[1].QuotedID)
	assert.Empty(t, posts[2].InReplyToID)
}

func TestNewClient_RequiresUserContext(t *testing.T) {
	_, err := NewClient(config.TwitterCredentials{BearerToken: "b"}, nil)
	assert.ErrorIs(t, err, domain.ErrConfig)

	c, err := NewClient(config.TwitterCredentials{
		BearerToken: "b", APIKey: "k", APISecret: "s", AccessToken: "t", AccessSecret: "a",
	}, nil)
	require.NoError(t, err)
	assert.NotSame(t, c.read, c.write)
}

func TestBearerTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	hc := &http.Client{Transport: bearerTransport{token: "tok", base: http.DefaultTransport}}
	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
}
