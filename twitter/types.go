package twitter

import "time"

// Tweet is a single tweet as returned by the v2 API. Only the fields the
// face consumes are mapped; absent field groups stay at their zero values.
type Tweet struct {
	ID               int64         `json:"id,string"`
	Text             string        `json:"text,omitempty"`
	AuthorID         int64         `json:"author_id,string,omitempty"`
	CreatedAt        *time.Time    `json:"created_at,omitempty"`
	Attachments      *Attachments  `json:"attachments,omitempty"`
	PublicMetrics    *TweetMetrics `json:"public_metrics,omitempty"`
	NonPublicMetrics *TweetMetrics `json:"non_public_metrics,omitempty"`
}

// Attachments links a tweet to media in the response's includes block.
type Attachments struct {
	MediaKeys []string `json:"media_keys,omitempty"`
}

// TweetMetrics carries engagement counts. Non-public metrics only populate
// ImpressionCount; the public block never does.
type TweetMetrics struct {
	RetweetCount    int `json:"retweet_count"`
	ReplyCount      int `json:"reply_count"`
	LikeCount       int `json:"like_count"`
	QuoteCount      int `json:"quote_count"`
	ImpressionCount int `json:"impression_count"`
}

// User is an account as returned by the v2 API.
type User struct {
	ID       int64  `json:"id,string"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

// Media is one attachment from a response's includes block.
type Media struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Includes carries the expanded entities referenced by the tweets in a
// response.
type Includes struct {
	Media []Media `json:"media,omitempty"`
	Users []User  `json:"users,omitempty"`
}

// MediaURL resolves a media key against the includes block. The empty string
// means the key is unknown or the media carries no direct URL.
func (i Includes) MediaURL(mediaKey string) string {
	for _, m := range i.Media {
		if m.MediaKey == mediaKey {
			return m.URL
		}
	}
	return ""
}

// Draft is the content of a tweet to create. MediaIDs reference uploads
// returned by UploadMedia.
type Draft struct {
	Text     string
	MediaIDs []string
}

// TimelineQuery parameterizes one page of a home timeline fetch.
type TimelineQuery struct {
	Fields          Fields
	StartTime       *time.Time
	EndTime         *time.Time
	PaginationToken string
}

// Timeline is one page of the home timeline. A non-empty NextToken means
// more pages follow.
type Timeline struct {
	Tweets    []Tweet
	Includes  Includes
	NextToken string
}
