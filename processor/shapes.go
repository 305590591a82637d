package processor

import (
	"context"

	"github.com/google/uuid"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/post"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// payloadSchema builds the schema for a shape's payload. Shapes only
// advertise the parts they read.
func payloadSchema(withText, withImage bool, required ...string) component.ConfigSchema {
	props := map[string]component.PropertySchema{}
	if withText {
		props["text"] = component.PropertySchema{
			Type:        "object",
			Description: "Text part holding the post content string",
		}
	}
	if withImage {
		props["image"] = component.PropertySchema{
			Type:        "object",
			Description: "Image part holding URL-safe base64 bytes and an optional filename",
		}
	}
	if required == nil {
		required = []string{}
	}
	return component.ConfigSchema{Properties: props, Required: required}
}

// textFrom extracts the text part of a tweet, nil when the tweet carries
// none.
func textFrom(tweet twitter.Tweet) *post.TextData {
	if tweet.Text == "" {
		return nil
	}
	return &post.TextData{Content: tweet.Text}
}

// imageFrom downloads the first attached image of a tweet, nil when the
// tweet has no resolvable image.
func imageFrom(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes, name string) (*post.ImageData, error) {
	if tweet.Attachments == nil || len(tweet.Attachments.MediaKeys) == 0 {
		return nil, nil
	}

	url := includes.MediaURL(tweet.Attachments.MediaKeys[0])
	if url == "" {
		return nil, nil
	}

	raw, err := client.DownloadImage(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, name, "Convert", "image download")
	}

	img := post.NewImageData(raw, post.FilenameFromURL(url))
	return &img, nil
}

// uploadImage pushes the image part to the media endpoint and returns the
// media id to attach to a draft.
func uploadImage(ctx context.Context, client twitter.Client, image post.ImageData, name string) (string, error) {
	raw, err := image.Bytes()
	if err != nil {
		return "", errors.WrapInvalid(errors.ErrMediaUpload, name, "Post", "image decoding")
	}

	mediaID, err := client.UploadMedia(ctx, raw, image.Filename)
	if err != nil {
		return "", errors.Wrap(err, name, "Post", "media upload")
	}
	return mediaID, nil
}

// createPost publishes a draft and encodes the created tweet id.
func createPost(ctx context.Context, client twitter.Client, draft twitter.Draft, name string) (uuid.UUID, error) {
	tweet, err := client.CreateTweet(ctx, draft)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, name, "Post", "tweet creation")
	}
	return twitter.EncodePostID(tweet.ID), nil
}

// TextOnly publishes and parses text-only posts.
type TextOnly struct {
	component.Stateless
}

// Category identifies the shape.
func (TextOnly) Category() string { return "text" }

// PostSchema describes the accepted payload.
func (TextOnly) PostSchema() component.ConfigSchema {
	return payloadSchema(true, false, "text")
}

// NeededFields declares the tweet fields Convert reads.
func (TextOnly) NeededFields() twitter.Fields { return TextFields }

// Post publishes the text part.
func (TextOnly) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	if data.Text == nil {
		return uuid.Nil, errors.WrapInvalid(errors.ErrEmptyPost, "TextOnlyProcessor", "Post", "text part check")
	}
	return createPost(ctx, client, twitter.Draft{Text: data.Text.Content}, "TextOnlyProcessor")
}

// Convert extracts the text part of a tweet.
func (TextOnly) Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error) {
	text := textFrom(tweet)
	if text == nil {
		return post.Data{}, errors.WrapInvalid(errors.ErrUnsupportedShape, "TextOnlyProcessor", "Convert", "text extraction")
	}
	return post.Data{Text: text}, nil
}

// ImageOnly publishes and parses image-only posts.
type ImageOnly struct {
	component.Stateless
}

// Category identifies the shape.
func (ImageOnly) Category() string { return "image" }

// PostSchema describes the accepted payload.
func (ImageOnly) PostSchema() component.ConfigSchema {
	return payloadSchema(false, true, "image")
}

// NeededFields declares the tweet fields Convert reads.
func (ImageOnly) NeededFields() twitter.Fields { return ImageFields }

// Post uploads the image part and publishes it.
func (ImageOnly) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	if data.Image == nil {
		return uuid.Nil, errors.WrapInvalid(errors.ErrEmptyPost, "ImageOnlyProcessor", "Post", "image part check")
	}

	mediaID, err := uploadImage(ctx, client, *data.Image, "ImageOnlyProcessor")
	if err != nil {
		return uuid.Nil, err
	}
	return createPost(ctx, client, twitter.Draft{MediaIDs: []string{mediaID}}, "ImageOnlyProcessor")
}

// Convert downloads the attached image of a tweet.
func (ImageOnly) Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error) {
	image, err := imageFrom(ctx, client, tweet, includes, "ImageOnlyProcessor")
	if err != nil {
		return post.Data{}, err
	}
	if image == nil {
		return post.Data{}, errors.WrapInvalid(errors.ErrUnsupportedShape, "ImageOnlyProcessor", "Convert", "image extraction")
	}
	return post.Data{Image: image}, nil
}

// TextAndImage publishes and parses posts that carry both parts.
type TextAndImage struct {
	component.Stateless
}

// Category identifies the shape.
func (TextAndImage) Category() string { return "text-and-image" }

// PostSchema describes the accepted payload.
func (TextAndImage) PostSchema() component.ConfigSchema {
	return payloadSchema(true, true, "text", "image")
}

// NeededFields declares the tweet fields Convert reads.
func (TextAndImage) NeededFields() twitter.Fields {
	return TextFields.Union(ImageFields)
}

// Post uploads the image part and publishes it together with the text.
func (TextAndImage) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	if data.Text == nil || data.Image == nil {
		return uuid.Nil, errors.WrapInvalid(errors.ErrEmptyPost, "TextAndImageProcessor", "Post", "part check")
	}

	mediaID, err := uploadImage(ctx, client, *data.Image, "TextAndImageProcessor")
	if err != nil {
		return uuid.Nil, err
	}
	draft := twitter.Draft{Text: data.Text.Content, MediaIDs: []string{mediaID}}
	return createPost(ctx, client, draft, "TextAndImageProcessor")
}

// Convert extracts both parts of a tweet.
func (TextAndImage) Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error) {
	text := textFrom(tweet)
	image, err := imageFrom(ctx, client, tweet, includes, "TextAndImageProcessor")
	if err != nil {
		return post.Data{}, err
	}
	if text == nil || image == nil {
		return post.Data{}, errors.WrapInvalid(errors.ErrUnsupportedShape, "TextAndImageProcessor", "Convert", "part extraction")
	}
	return post.Data{Text: text, Image: image}, nil
}

// TextOrImage publishes and parses posts carrying at least one part.
type TextOrImage struct {
	component.Stateless
}

// Category identifies the shape.
func (TextOrImage) Category() string { return "text-or-image" }

// PostSchema describes the accepted payload. Neither part is marked
// required; Post enforces that at least one is present.
func (TextOrImage) PostSchema() component.ConfigSchema {
	return payloadSchema(true, true)
}

// NeededFields declares the tweet fields Convert reads.
func (TextOrImage) NeededFields() twitter.Fields {
	return TextFields.Union(ImageFields)
}

// Post publishes whichever parts are present.
func (TextOrImage) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	if data.Text == nil && data.Image == nil {
		return uuid.Nil, errors.WrapInvalid(errors.ErrEmptyPost, "TextOrImageProcessor", "Post", "part check")
	}

	var draft twitter.Draft
	if data.Text != nil {
		draft.Text = data.Text.Content
	}
	if data.Image != nil {
		mediaID, err := uploadImage(ctx, client, *data.Image, "TextOrImageProcessor")
		if err != nil {
			return uuid.Nil, err
		}
		draft.MediaIDs = []string{mediaID}
	}
	return createPost(ctx, client, draft, "TextOrImageProcessor")
}

// Convert extracts whichever parts the tweet carries.
func (TextOrImage) Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error) {
	text := textFrom(tweet)
	image, err := imageFrom(ctx, client, tweet, includes, "TextOrImageProcessor")
	if err != nil {
		return post.Data{}, err
	}
	if text == nil && image == nil {
		return post.Data{}, errors.WrapInvalid(errors.ErrUnsupportedShape, "TextOrImageProcessor", "Convert", "part extraction")
	}
	return post.Data{Text: text, Image: image}, nil
}

// TextWithOptionalImage publishes and parses posts with required text and
// an optional image.
type TextWithOptionalImage struct {
	component.Stateless
}

// Category identifies the shape.
func (TextWithOptionalImage) Category() string { return "text-with-optional-image" }

// PostSchema describes the accepted payload.
func (TextWithOptionalImage) PostSchema() component.ConfigSchema {
	return payloadSchema(true, true, "text")
}

// NeededFields declares the tweet fields Convert reads.
func (TextWithOptionalImage) NeededFields() twitter.Fields {
	return TextFields.Union(ImageFields)
}

// Post publishes the text and, when present, the image.
func (TextWithOptionalImage) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	if data.Text == nil {
		return uuid.Nil, errors.WrapInvalid(errors.ErrEmptyPost, "TextWithOptionalImageProcessor", "Post", "text part check")
	}

	draft := twitter.Draft{Text: data.Text.Content}
	if data.Image != nil {
		mediaID, err := uploadImage(ctx, client, *data.Image, "TextWithOptionalImageProcessor")
		if err != nil {
			return uuid.Nil, err
		}
		draft.MediaIDs = []string{mediaID}
	}
	return createPost(ctx, client, draft, "TextWithOptionalImageProcessor")
}

// Convert extracts the text part and any attached image.
func (TextWithOptionalImage) Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error) {
	text := textFrom(tweet)
	if text == nil {
		return post.Data{}, errors.WrapInvalid(errors.ErrUnsupportedShape, "TextWithOptionalImageProcessor", "Convert", "text extraction")
	}

	image, err := imageFrom(ctx, client, tweet, includes, "TextWithOptionalImageProcessor")
	if err != nil {
		return post.Data{}, err
	}
	return post.Data{Text: text, Image: image}, nil
}

// ImageWithOptionalText publishes and parses posts with a required image
// and optional text.
type ImageWithOptionalText struct {
	component.Stateless
}

// Category identifies the shape.
func (ImageWithOptionalText) Category() string { return "image-with-optional-text" }

// PostSchema describes the accepted payload.
func (ImageWithOptionalText) PostSchema() component.ConfigSchema {
	return payloadSchema(true, true, "image")
}

// NeededFields declares the tweet fields Convert reads.
func (ImageWithOptionalText) NeededFields() twitter.Fields {
	return TextFields.Union(ImageFields)
}

// Post uploads the image and publishes it with any text present.
func (ImageWithOptionalText) Post(ctx context.Context, client twitter.Client, data post.Data) (uuid.UUID, error) {
	if data.Image == nil {
		return uuid.Nil, errors.WrapInvalid(errors.ErrEmptyPost, "ImageWithOptionalTextProcessor", "Post", "image part check")
	}

	mediaID, err := uploadImage(ctx, client, *data.Image, "ImageWithOptionalTextProcessor")
	if err != nil {
		return uuid.Nil, err
	}
	draft := twitter.Draft{MediaIDs: []string{mediaID}}
	if data.Text != nil {
		draft.Text = data.Text.Content
	}
	return createPost(ctx, client, draft, "ImageWithOptionalTextProcessor")
}

// Convert extracts the image part and any text.
func (ImageWithOptionalText) Convert(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (post.Data, error) {
	image, err := imageFrom(ctx, client, tweet, includes, "ImageWithOptionalTextProcessor")
	if err != nil {
		return post.Data{}, err
	}
	if image == nil {
		return post.Data{}, errors.WrapInvalid(errors.ErrUnsupportedShape, "ImageWithOptionalTextProcessor", "Convert", "image extraction")
	}
	return post.Data{Text: textFrom(tweet), Image: image}, nil
}
