package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// Upload records one media upload made through the fake client.
type Upload struct {
	Filename string
	Size     int
}

// FakeClient is an in-memory twitter.Client for tests. Zero value is not
// usable; construct with NewFakeClient. Behavior can be overridden per
// method with the *Func fields; nil funcs fall back to the in-memory
// defaults. Thread-safe.
type FakeClient struct {
	mu sync.Mutex

	// Injectable behavior
	CreateTweetFunc  func(ctx context.Context, draft twitter.Draft) (twitter.Tweet, error)
	GetTweetFunc     func(ctx context.Context, id int64, fields twitter.Fields) (twitter.Tweet, twitter.Includes, error)
	GetMeFunc        func(ctx context.Context) (twitter.User, error)
	HomeTimelineFunc func(ctx context.Context, query twitter.TimelineQuery) (twitter.Timeline, error)
	UploadMediaFunc  func(ctx context.Context, data []byte, filename string) (string, error)
	DownloadFunc     func(ctx context.Context, url string) ([]byte, error)

	// In-memory state backing the defaults
	Me       twitter.User
	Tweets   map[int64]twitter.Tweet
	Includes map[int64]twitter.Includes
	Pages    []twitter.Timeline
	Images   map[string][]byte

	// Recorded activity
	Created         []twitter.Draft
	Uploads         []Upload
	TimelineQueries []twitter.TimelineQuery
	LastTweetFields twitter.Fields

	// Call counts for verification
	CreateTweetCalls  int
	GetTweetCalls     int
	GetMeCalls        int
	HomeTimelineCalls int
	UploadMediaCalls  int
	DownloadCalls     int

	nextTweetID int64
	nextMediaID int
}

// NewFakeClient creates a fake client with an authenticated test account
// and empty in-memory state.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Me:          twitter.User{ID: 42, Name: "Kilroy", Username: "kilroybot"},
		Tweets:      make(map[int64]twitter.Tweet),
		Includes:    make(map[int64]twitter.Includes),
		Images:      make(map[string][]byte),
		nextTweetID: 1000,
	}
}

// AddTweet seeds a tweet for GetTweet lookups.
func (f *FakeClient) AddTweet(tweet twitter.Tweet, includes twitter.Includes) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Tweets[tweet.ID] = tweet
	f.Includes[tweet.ID] = includes
}

// AddPage appends a home timeline page. Pages are chained with pagination
// tokens automatically; callers should leave NextToken empty.
func (f *FakeClient) AddPage(page twitter.Timeline) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Pages = append(f.Pages, page)
}

// CreateTweet records the draft and returns a tweet with a fresh id.
func (f *FakeClient) CreateTweet(ctx context.Context, draft twitter.Draft) (twitter.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateTweetCalls++
	if f.CreateTweetFunc != nil {
		return f.CreateTweetFunc(ctx, draft)
	}

	f.Created = append(f.Created, draft)
	f.nextTweetID++
	return twitter.Tweet{ID: f.nextTweetID, Text: draft.Text, AuthorID: f.Me.ID}, nil
}

// GetTweet serves a seeded tweet and records the requested fields.
func (f *FakeClient) GetTweet(ctx context.Context, id int64, fields twitter.Fields) (twitter.Tweet, twitter.Includes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetTweetCalls++
	f.LastTweetFields = fields
	if f.GetTweetFunc != nil {
		return f.GetTweetFunc(ctx, id, fields)
	}

	tweet, ok := f.Tweets[id]
	if !ok {
		err := fmt.Errorf("%w: tweet %d", errors.ErrNotFound, id)
		return twitter.Tweet{}, twitter.Includes{}, errors.WrapInvalid(err, "FakeClient", "GetTweet", "tweet lookup")
	}
	return tweet, f.Includes[id], nil
}

// GetMe returns the configured test account.
func (f *FakeClient) GetMe(ctx context.Context) (twitter.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetMeCalls++
	if f.GetMeFunc != nil {
		return f.GetMeFunc(ctx)
	}
	return f.Me, nil
}

// HomeTimeline serves seeded pages in order, chaining pagination tokens.
func (f *FakeClient) HomeTimeline(ctx context.Context, query twitter.TimelineQuery) (twitter.Timeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.HomeTimelineCalls++
	f.TimelineQueries = append(f.TimelineQueries, query)
	if f.HomeTimelineFunc != nil {
		return f.HomeTimelineFunc(ctx, query)
	}

	index := 0
	if query.PaginationToken != "" {
		parsed, err := strconv.Atoi(query.PaginationToken)
		if err != nil {
			return twitter.Timeline{}, errors.WrapInvalid(err, "FakeClient", "HomeTimeline", "pagination token parsing")
		}
		index = parsed
	}
	if index >= len(f.Pages) {
		return twitter.Timeline{}, nil
	}

	page := f.Pages[index]
	if index+1 < len(f.Pages) {
		page.NextToken = strconv.Itoa(index + 1)
	} else {
		page.NextToken = ""
	}
	return page, nil
}

// UploadMedia records the upload and returns a fresh media id.
func (f *FakeClient) UploadMedia(ctx context.Context, data []byte, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.UploadMediaCalls++
	if f.UploadMediaFunc != nil {
		return f.UploadMediaFunc(ctx, data, filename)
	}

	f.Uploads = append(f.Uploads, Upload{Filename: filename, Size: len(data)})
	f.nextMediaID++
	return fmt.Sprintf("media-%d", f.nextMediaID), nil
}

// DownloadImage serves seeded image bytes by URL.
func (f *FakeClient) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DownloadCalls++
	if f.DownloadFunc != nil {
		return f.DownloadFunc(ctx, url)
	}

	data, ok := f.Images[url]
	if !ok {
		err := fmt.Errorf("%w: image %s", errors.ErrNotFound, url)
		return nil, errors.WrapInvalid(err, "FakeClient", "DownloadImage", "image lookup")
	}
	return data, nil
}
