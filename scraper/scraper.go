// Package scraper defines how historical posts are discovered. A scraper
// walks a remote feed page by page and hands each post to the caller,
// fetching no further than the caller wants to read.
package scraper

import (
	"context"
	"time"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// DefaultCategory is the scraper used when the configuration names none.
const DefaultCategory = "timeline"

// Window bounds a scrap run in time. Nil ends are unbounded; values are
// passed to the remote feed verbatim.
type Window struct {
	Before *time.Time
	After  *time.Time
}

// Scraper walks a remote feed. Implementations must be safe for
// concurrent use.
type Scraper interface {
	component.Identifiable
	component.Configurable
	component.Closer

	// Scrap fetches posts in the window carrying the given fields and
	// hands each to emit together with its expanded includes. Returning
	// false from emit ends the walk; no further page is fetched. A
	// cancelled context ends the walk with the context's error.
	Scrap(ctx context.Context, client twitter.Client, fields twitter.Fields, window Window, emit func(twitter.Tweet, twitter.Includes) bool) error
}

// Timeline walks the authenticated account's reverse-chronological home
// timeline, skipping the account's own posts.
type Timeline struct {
	component.Stateless
	component.NopCloser
}

// Category identifies the scraper.
func (Timeline) Category() string { return "timeline" }

// Scrap pages through the home timeline.
func (Timeline) Scrap(ctx context.Context, client twitter.Client, fields twitter.Fields, window Window, emit func(twitter.Tweet, twitter.Includes) bool) error {
	me, err := client.GetMe(ctx)
	if err != nil {
		return errors.Wrap(err, "TimelineScraper", "Scrap", "own account resolution")
	}

	// Author ids are needed to recognize and skip the account's own posts.
	query := twitter.TimelineQuery{
		Fields: fields.Union(twitter.Fields{
			Expansions: []string{"author_id"},
			Tweets:     []string{"author_id"},
		}),
		StartTime: window.After,
		EndTime:   window.Before,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := client.HomeTimeline(ctx, query)
		if err != nil {
			return errors.Wrap(err, "TimelineScraper", "Scrap", "timeline page fetch")
		}

		for _, tweet := range page.Tweets {
			if tweet.AuthorID == me.ID {
				continue
			}
			if !emit(tweet, page.Includes) {
				return nil
			}
		}

		if page.NextToken == "" {
			return nil
		}
		query.PaginationToken = page.NextToken
	}
}

// NewRegistry returns a registry with every scraper registered.
func NewRegistry() *component.Registry[Scraper] {
	r := component.NewRegistry[Scraper]("scraper")
	r.MustRegister("timeline", func() (Scraper, error) { return Timeline{}, nil })
	return r
}
