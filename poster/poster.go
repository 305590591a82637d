// Package poster turns an approved payload into a published post
// record. The shape-specific work of uploading media and creating the
// remote post belongs to the publisher; a poster completes the public
// record around it.
package poster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// DefaultCategory is the poster used when the configuration names none.
const DefaultCategory = "basic"

// Publisher performs the shape-specific half of publishing. Every
// processor satisfies it.
type Publisher interface {
	Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error)
}

// Poster publishes payloads. Implementations must be safe for
// concurrent use.
type Poster interface {
	component.Identifiable
	component.Configurable

	// Post publishes data through publisher and returns the complete
	// record of the new post, including its canonical URL.
	Post(ctx context.Context, client twitter.Client, publisher Publisher, data post.Data) (post.Post, error)
}

// Basic publishes through the given publisher and links the post under
// the authenticated account's profile.
type Basic struct {
	component.Stateless
}

// Category identifies the poster.
func (Basic) Category() string { return "basic" }

// Post publishes data and assembles the public record.
func (Basic) Post(ctx context.Context, client twitter.Client, publisher Publisher, data post.Data) (post.Post, error) {
	id, err := publisher.Post(ctx, client, data)
	if err != nil {
		return post.Post{}, err
	}

	tweetID, err := twitter.DecodePostID(id)
	if err != nil {
		return post.Post{}, errors.Wrap(err, "BasicPoster", "Post", "post id decoding")
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		return post.Post{}, errors.Wrap(err, "BasicPoster", "Post", "own account resolution")
	}

	return post.Post{
		Data: data,
		ID:   id,
		URL:  fmt.Sprintf("https://twitter.com/%s/status/%d", me.Username, tweetID),
	}, nil
}

// NewRegistry returns a registry with every poster registered.
func NewRegistry() *component.Registry[Poster] {
	r := component.NewRegistry[Poster]("poster")
	r.MustRegister("basic", func() (Poster, error) { return Basic{}, nil })
	return r
}
