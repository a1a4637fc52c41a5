// Package media turns event flyers into durable URLs: it generates an image
// when the caller supplied none and uploads it to the configured media host.
package media

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"

	"github.com/evently/apiserver/types"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ErrUpstream marks failures of the image generator or the media host.
var ErrUpstream = errors.New("upstream service failure")

// Uploader stores a flyer under key and returns its durable URL.
type Uploader interface {
	Upload(ctx context.Context, key string, flyer types.Flyer) (string, error)
}

// Generator produces a flyer image from a text prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (types.Flyer, error)
}

// ObjectKey names a flyer object after the event title. The uuid suffix keeps
// keys unique across replacements.
func ObjectKey(folder, title, contentType string) string {
	name := slug.Make(title)
	if name == "" {
		name = "event"
	}
	name += "-" + uuid.NewString() + extension(contentType)

	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Prompt builds the image generation prompt for an event.
func Prompt(title, description string) string {
	var b strings.Builder
	b.WriteString("Design an eye-catching promotional flyer for an event titled \"")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\".")
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString(" Event details: ")
		b.WriteString(d)
		if !strings.HasSuffix(d, ".") {
			b.WriteString(".")
		}
	}
	b.WriteString(" Bold typography, vibrant colours, no small print.")
	return b.String()
}
