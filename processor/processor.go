// Package processor defines the content shapes the face can publish and
// parse. Each shape is a category: it publishes payloads with the right
// mix of text and media, converts fetched tweets back into payloads, and
// declares the tweet fields that conversion needs.
package processor

import (
	"context"

	"github.com/google/uuid"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// DefaultCategory is the shape used when the configuration names none.
const DefaultCategory = "text"

// Processor is one content shape. Implementations are stateless and safe
// for concurrent use.
type Processor interface {
	component.Identifiable
	component.Configurable

	// Post publishes the payload and returns the opaque id of the created
	// post. Parts the shape requires must be present; parts it does not
	// use are ignored.
	Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error)

	// Convert turns a fetched tweet into a payload of this shape. A tweet
	// that does not satisfy the shape yields an error; the scrap pipeline
	// skips such items.
	Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error)

	// NeededFields declares the tweet fields Convert reads.
	NeededFields() twitter.Fields

	// PostSchema describes the payload parts this shape accepts.
	PostSchema() component.ConfigSchema
}

// TextFields is the field set a shape needs to read tweet text.
var TextFields = twitter.Fields{Tweets: []string{"text"}}

// ImageFields is the field set a shape needs to resolve attached images.
var ImageFields = twitter.Fields{
	Expansions: []string{"attachments.media_keys"},
	Media:      []string{"url"},
	Tweets:     []string{"attachments"},
}

// NewRegistry returns a registry with every content shape registered.
func NewRegistry() *component.Registry[Processor] {
	r := component.NewRegistry[Processor]("processor")
	r.MustRegister("text", func() (Processor, error) { return TextOnly{}, nil })
	r.MustRegister("image", func() (Processor, error) { return ImageOnly{}, nil })
	r.MustRegister("text-and-image", func() (Processor, error) { return TextAndImage{}, nil })
	r.MustRegister("text-or-image", func() (Processor, error) { return TextOrImage{}, nil })
	r.MustRegister("text-with-optional-image", func() (Processor, error) { return TextWithOptionalImage{}, nil })
	r.MustRegister("image-with-optional-text", func() (Processor, error) { return ImageWithOptionalText{}, nil })
	return r
}
