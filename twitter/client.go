// Package twitter wraps the Twitter API surface the face depends on: tweet
// creation and lookup, the reverse-chronological home timeline, v1.1 media
// upload, and image download. The Client interface is the seam components
// program against; RestClient is the production implementation with OAuth 1.0a
// request signing, client-side rate limiting, and retry on transient failures.
package twitter

import "context"

// Client is the face's view of the social network. Implementations must be
// safe for concurrent use; the same client handle is shared by every state
// snapshot across reconfigurations.
type Client interface {
	// CreateTweet publishes a draft and returns the created tweet.
	CreateTweet(ctx context.Context, draft Draft) (Tweet, error)

	// GetTweet fetches one tweet by id, carrying the requested field groups.
	GetTweet(ctx context.Context, id int64, fields Fields) (Tweet, Includes, error)

	// GetMe returns the authenticated account.
	GetMe(ctx context.Context) (User, error)

	// HomeTimeline fetches one page of the authenticated account's home
	// timeline.
	HomeTimeline(ctx context.Context, query TimelineQuery) (Timeline, error)

	// UploadMedia uploads raw bytes and returns a media id usable in a
	// Draft.
	UploadMedia(ctx context.Context, data []byte, filename string) (string, error)

	// DownloadImage fetches the raw bytes behind a media URL.
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// Credentials is the OAuth 1.0a user context the client signs requests with.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}
