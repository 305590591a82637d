package poster

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/processor"
	"github.com/kilroybot/kilroy-face-twitter/testutil"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

type publisherFunc func(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error)

func (f publisherFunc) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	return f(ctx, client, data)
}

func TestRegistryCoversAllPosters(t *testing.T) {
	registry := NewRegistry()
	assert.Equal(t, []string{"basic"}, registry.Categories())

	poster, err := registry.Build("basic")
	require.NoError(t, err)
	assert.Equal(t, "basic", poster.Category())
}

func TestBasicPostBuildsCanonicalURL(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeClient()
	data := post.Data{Text: &post.TextData{Content: "hello there"}}

	record, err := Basic{}.Post(ctx, client, processor.TextOnly{}, data)
	require.NoError(t, err)

	require.Len(t, client.Created, 1)
	assert.Equal(t, "hello there", client.Created[0].Text)
	assert.Equal(t, "https://twitter.com/kilroybot/status/1001", record.URL)
	assert.Equal(t, data, record.Data)

	tweetID, err := twitter.DecodePostID(record.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), tweetID)
}

func TestBasicPostStopsOnPublishFailure(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeClient()
	rejected := kerrors.WrapInvalid(kerrors.ErrEmptyPost, "TextOnlyProcessor", "Post", "text part check")

	_, err := Basic{}.Post(ctx, client, publisherFunc(func(context.Context, twitter.Client, post.Data) (uuid.UUID, error) {
		return uuid.UUID{}, rejected
	}), post.Data{})

	assert.ErrorIs(t, err, kerrors.ErrEmptyPost)
	assert.Equal(t, 0, client.GetMeCalls, "no account lookup for a post that never published")
}

func TestBasicPostPropagatesAccountFailure(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewFakeClient()
	client.GetMeFunc = func(context.Context) (twitter.User, error) {
		return twitter.User{}, kerrors.ErrUnauthorized
	}
	data := post.Data{Text: &post.TextData{Content: "hello"}}

	_, err := Basic{}.Post(ctx, client, processor.TextOnly{}, data)

	assert.ErrorIs(t, err, kerrors.ErrUnauthorized)
}

func TestBasicIsStateless(t *testing.T) {
	poster := Basic{}
	assert.Empty(t, poster.Config())
	require.NoError(t, poster.Configure(map[string]any{"anything": 1}))
	assert.Empty(t, poster.Schema().Properties)
}
