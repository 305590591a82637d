// Package scorer defines how fetched posts are rated. Each scorer reads
// one engagement metric off a tweet and declares the field group that
// metric arrives in.
package scorer

import (
	"context"
	"fmt"

	"github.com/kilroybot/kilroy-face-twitter/component"
	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/twitter"
)

// DefaultCategory is the scorer used when the configuration names none.
const DefaultCategory = "likes"

// Scorer rates one tweet. Implementations are stateless and safe for
// concurrent use.
type Scorer interface {
	component.Identifiable
	component.Configurable
	component.Closer

	// Score returns the tweet's rating under this scorer's metric.
	Score(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (float64, error)

	// NeededFields declares the tweet fields Score reads.
	NeededFields() twitter.Fields
}

// Likes rates tweets by like count.
type Likes struct {
	component.Stateless
	component.NopCloser
}

// Category identifies the scorer.
func (Likes) Category() string { return "likes" }

// NeededFields declares the public metrics field group.
func (Likes) NeededFields() twitter.Fields {
	return twitter.Fields{Tweets: []string{"public_metrics"}}
}

// Score returns the like count.
func (Likes) Score(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (float64, error) {
	if tweet.PublicMetrics == nil {
		return 0, errors.WrapInvalid(fmt.Errorf("tweet %d carries no public metrics", tweet.ID), "LikesScorer", "Score", "metrics check")
	}
	return float64(tweet.PublicMetrics.LikeCount), nil
}

// Retweets rates tweets by retweet count.
type Retweets struct {
	component.Stateless
	component.NopCloser
}

// Category identifies the scorer.
func (Retweets) Category() string { return "retweets" }

// NeededFields declares the public metrics field group.
func (Retweets) NeededFields() twitter.Fields {
	return twitter.Fields{Tweets: []string{"public_metrics"}}
}

// Score returns the retweet count.
func (Retweets) Score(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (float64, error) {
	if tweet.PublicMetrics == nil {
		return 0, errors.WrapInvalid(fmt.Errorf("tweet %d carries no public metrics", tweet.ID), "RetweetsScorer", "Score", "metrics check")
	}
	return float64(tweet.PublicMetrics.RetweetCount), nil
}

// Impressions rates tweets by impression count. Impressions arrive in the
// non-public metrics group, only readable on the account's own tweets.
type Impressions struct {
	component.Stateless
	component.NopCloser
}

// Category identifies the scorer.
func (Impressions) Category() string { return "impressions" }

// NeededFields declares the non-public metrics field group.
func (Impressions) NeededFields() twitter.Fields {
	return twitter.Fields{Tweets: []string{"non_public_metrics"}}
}

// Score returns the impression count.
func (Impressions) Score(ctx context.Context, client twitter.Client, tweet twitter.Tweet, includes twitter.Includes) (float64, error) {
	if tweet.NonPublicMetrics == nil {
		return 0, errors.WrapInvalid(fmt.Errorf("tweet %d carries no non-public metrics", tweet.ID), "ImpressionsScorer", "Score", "metrics check")
	}
	return float64(tweet.NonPublicMetrics.ImpressionCount), nil
}

// NewRegistry returns a registry with every scorer registered.
func NewRegistry() *component.Registry[Scorer] {
	r := component.NewRegistry[Scorer]("scorer")
	r.MustRegister("likes", func() (Scorer, error) { return Likes{}, nil })
	r.MustRegister("retweets", func() (Scorer, error) { return Retweets{}, nil })
	r.MustRegister("impressions", func() (Scorer, error) { return Impressions{}, nil })
	return r
}
