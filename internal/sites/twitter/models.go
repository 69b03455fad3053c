package twitter

import "time"

// apiUser is a user object from the v2 API.
type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type apiReference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// apiTweet is a tweet object from the v2 API.
type apiTweet struct {
	ID               string         `json:"id"`
	Text             string         `json:"text"`
	AuthorID         string         `json:"author_id"`
	CreatedAt        time.Time      `json:"created_at"`
	ReferencedTweets []apiReference `json:"referenced_tweets"`
}

type apiError struct {
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e apiError) String() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Message != "":
		return e.Message
	}
	return e.Title
}

// tweetListResponse covers search, mentions and user timelines.
type tweetListResponse struct {
	Data     []apiTweet `json:"data"`
	Includes struct {
		Users []apiUser `json:"users"`
	} `json:"includes"`
	Errors []apiError `json:"errors"`
}

type userResponse struct {
	Data   *apiUser   `json:"data"`
	Errors []apiError `json:"errors"`
}

// CreateTweetRequest is the body of POST /2/tweets.
type CreateTweetRequest struct {
	Text         string        `json:"text"`
	Reply        *ReplySetting `json:"reply,omitempty"`
	QuoteTweetID string        `json:"quote_tweet_id,omitempty"`
}

type ReplySetting struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createTweetResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

type likeRequest struct {
	TweetID string `json:"tweet_id"`
}

type likeResponse struct {
	Data *struct {
		Liked bool `json:"liked"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

// problemResponse is the top-level error shape for non-2xx replies.
type problemResponse struct {
	apiError
	Errors []apiError `json:"errors"`
}
