package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/config"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
)

const (
	DefaultBaseURL = "https://api.twitter.com/2"

	// The v2 endpoints reject max_results outside these ranges.
	minSearchResults  = 10
	minMentionResults = 5
	minTimelineResult = 5
	maxResults        = 100

	maxRateLimitRetries = 2
	maxRateLimitWait    = 15 * time.Minute
	defaultRateLimitGap = time.Minute
)

// Client is the X API v2 adapter. Writes are signed with OAuth 1.0a user
// context; reads use the app bearer token when one is configured.
type Client struct {
	BaseURL string

	read    *http.Client
	write   *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// Ensure Client implements Social interface
var _ ports.Social = (*Client)(nil)

// NewClient builds a client from the credential set. It performs no
// network calls.
func NewClient(creds config.TwitterCredentials, log *slog.Logger) (*Client, error) {
	if !creds.HasUserContext() {
		return nil, fmt.Errorf("%w: twitter user-context credentials are incomplete", domain.ErrConfig)
	}
	oauth := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	write := oauth.Client(oauth1.NoContext, token)
	write.Timeout = 30 * time.Second

	read := write
	if creds.BearerToken != "" {
		read = &http.Client{
			Timeout:   30 * time.Second,
			Transport: bearerTransport{token: creds.BearerToken, base: http.DefaultTransport},
		}
	}
	return newClient(DefaultBaseURL, read, write, log), nil
}

func newClient(baseURL string, read, write *http.Client, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		read:    read,
		write:   write,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		log:     log.With(slog.String("component", "twitter")),
		sleep:   sleepContext,
		now:     time.Now,
	}
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do sends a request and decodes a 2xx JSON body into out. A 429 waits for
// the advertised reset and retries; the request was not applied, so this is
// safe for writes too.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := hc.Do(req)
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			wait := c.rateLimitWait(resp.Header)
			c.log.WarnContext(ctx, "rate limited, waiting for reset",
				slog.String("path", path), slog.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return statusError(resp.StatusCode, raw)
		}
		if out == nil || len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, out)
	}
}

func (c *Client) rateLimitWait(h http.Header) time.Duration {
	reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64)
	if err != nil {
		return defaultRateLimitGap
	}
	wait := time.Unix(reset, 0).Sub(c.now())
	switch {
	case wait < time.Second:
		return time.Second
	case wait > maxRateLimitWait:
		return maxRateLimitWait
	}
	return wait
}

func statusError(status int, raw []byte) error {
	var problem problemResponse
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &problem) == nil {
		if s := problem.apiError.String(); s != "" {
			msg = s
		} else if len(problem.Errors) > 0 {
			msg = problem.Errors[0].String()
		}
	}
	return fmt.Errorf("status %d: %s", status, msg)
}

func firstError(errs []apiError) error {
	if len(errs) == 0 {
		return errors.New("empty response")
	}
	return errors.New(errs[0].String())
}

func (c *Client) IdentifySelf(ctx context.Context) (domain.UserID, error) {
	var res userResponse
	// users/me needs user context even when a bearer token is present.
	if err := c.do(ctx, c.write, http.MethodGet, "/users/me", nil, nil, &res); err != nil {
		return "", fmt.Errorf("%w: identify self: %v", domain.ErrFetch, err)
	}
	if res.Data == nil || res.Data.ID == "" {
		return "", fmt.Errorf("%w: identify self: %v", domain.ErrFetch, firstError(res.Errors))
	}
	return domain.UserID(res.Data.ID), nil
}

func tweetQuery(limit, floor int) url.Values {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(limit, floor, maxResults)))
	q.Set("tweet.fields", "author_id,created_at")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")
	return q
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.CandidateItem, error) {
	q := tweetQuery(limit, minSearchResults)
	q.Set("query", query)

	var res tweetListResponse
	if err := c.do(ctx, c.read, http.MethodGet, "/tweets/search/recent", q, nil, &res); err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", domain.ErrFetch, query, err)
	}
	return toCandidates(res, limit), nil
}

func (c *Client) FetchMentions(ctx context.Context, userID domain.UserID, limit int) ([]domain.CandidateItem, error) {
	var res tweetListResponse
	path := "/users/" + url.PathEscape(string(userID)) + "/mentions"
	if err := c.do(ctx, c.read, http.MethodGet, path, tweetQuery(limit, minMentionResults), nil, &res); err != nil {
		return nil, fmt.Errorf("%w: mentions: %v", domain.ErrFetch, err)
	}
	return toCandidates(res, limit), nil
}

// toCandidates keeps the API's order and fills usernames from the
// expansions block.
func toCandidates(res tweetListResponse, limit int) []domain.CandidateItem {
	users := make(map[string]string, len(res.Includes.Users))
	for _, u := range res.Includes.Users {
		users[u.ID] = u.Username
	}

	items := make([]domain.CandidateItem, 0, len(res.Data))
	for _, t := range res.Data {
		if limit > 0 && len(items) == limit {
			break
		}
		items = append(items, domain.CandidateItem{
			ID:             t.ID,
			AuthorID:       t.AuthorID,
			AuthorUsername: users[t.AuthorID],
			Text:           t.Text,
			CreatedAt:      t.CreatedAt,
		})
	}
	return items
}

func (c *Client) LookupUsername(ctx context.Context, authorID string) (string, error) {
	q := url.Values{}
	q.Set("user.fields", "username")

	var res userResponse
	if err := c.do(ctx, c.read, http.MethodGet, "/users/"+url.PathEscape(authorID), q, nil, &res); err != nil {
		return "", fmt.Errorf("%w: lookup user %s: %v", domain.ErrFetch, authorID, err)
	}
	if res.Data == nil || res.Data.Username == "" {
		return "", fmt.Errorf("%w: lookup user %s: %v", domain.ErrFetch, authorID, firstError(res.Errors))
	}
	return res.Data.Username, nil
}

func (c *Client) RecentPosts(ctx context.Context, userID domain.UserID, limit int) ([]domain.OwnPost, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(limit, minTimelineResult, maxResults)))
	q.Set("tweet.fields", "referenced_tweets")

	var res tweetListResponse
	path := "/users/" + url.PathEscape(string(userID)) + "/tweets"
	if err := c.do(ctx, c.read, http.MethodGet, path, q, nil, &res); err != nil {
		return nil, fmt.Errorf("%w: own timeline: %v", domain.ErrFetch, err)
	}

	posts := make([]domain.OwnPost, 0, len(res.Data))
	for _, t := range res.Data {
		if limit > 0 && len(posts) == limit {
			break
		}
		p := domain.OwnPost{ID: t.ID, Text: t.Text}
		for _, ref := range t.ReferencedTweets {
			switch ref.Type {
			case "replied_to":
				p.InReplyToID = ref.ID
			case "quoted":
				p.QuotedID = ref.ID
			}
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (c *Client) createTweet(ctx context.Context, req CreateTweetRequest) (string, error) {
	var res createTweetResponse
	if err := c.do(ctx, c.write, http.MethodPost, "/tweets", nil, req, &res); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrWrite, err)
	}
	if res.Data == nil || res.Data.ID == "" {
		return "", fmt.Errorf("%w: no tweet id in response: %v", domain.ErrWrite, firstError(res.Errors))
	}
	return res.Data.ID, nil
}

func (c *Client) Post(ctx context.Context, text string) (string, error) {
	return c.createTweet(ctx, CreateTweetRequest{Text: text})
}

func (c *Client) Reply(ctx context.Context, text, targetID string) (string, error) {
	return c.createTweet(ctx, CreateTweetRequest{
		Text:  text,
		Reply: &ReplySetting{InReplyToTweetID: targetID},
	})
}

func (c *Client) Quote(ctx context.Context, text, targetID string) (string, error) {
	return c.createTweet(ctx, CreateTweetRequest{Text: text, QuoteTweetID: targetID})
}

func (c *Client) Like(ctx context.Context, userID domain.UserID, targetID string) error {
	var res likeResponse
	path := "/users/" + url.PathEscape(string(userID)) + "/likes"
	if err := c.do(ctx, c.write, http.MethodPost, path, nil, likeRequest{TweetID: targetID}, &res); err != nil {
		return fmt.Errorf("%w: like %s: %v", domain.ErrWrite, targetID, err)
	}
	if res.Data == nil || !res.Data.Liked {
		return fmt.Errorf("%w: like %s not acknowledged: %v", domain.ErrWrite, targetID, firstError(res.Errors))
	}
	return nil
}
