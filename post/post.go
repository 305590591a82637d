// Package post defines the content payload exchanged with the outside
// world: the text and image parts of a post, and the record describing a
// post after it has been published.
package post

import (
	"encoding/base64"
	"net/url"
	"path"

	"github.com/google/uuid"
)

// TextData is the text part of a post.
type TextData struct {
	Content string `json:"content"`
}

// ImageData is the image part of a post. Raw holds the image bytes in
// URL-safe base64.
type ImageData struct {
	Raw      string `json:"raw"`
	Filename string `json:"filename,omitempty"`
}

// NewImageData encodes raw image bytes into the wire representation.
func NewImageData(raw []byte, filename string) ImageData {
	return ImageData{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		Filename: filename,
	}
}

// Bytes decodes the image back into raw bytes.
func (d ImageData) Bytes() ([]byte, error) {
	return base64.URLEncoding.DecodeString(d.Raw)
}

// Data is the parsed payload of a post. Either part may be absent; which
// combinations are acceptable depends on the active content shape.
type Data struct {
	Text  *TextData  `json:"text,omitempty"`
	Image *ImageData `json:"image,omitempty"`
}

// Post describes a published post: the content that went out, the opaque
// id it can be scored under later, and its public URL.
type Post struct {
	Data Data      `json:"data"`
	ID   uuid.UUID `json:"id"`
	URL  string    `json:"url"`
}

// FilenameFromURL extracts the last path element of a media URL, used as
// the filename of a downloaded image.
func FilenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
