package twitter

import (
	"net/url"
	"sort"
	"strings"
)

// Fields names the remote field groups a request should carry. Each group is
// a set of attribute names; Union merges two requirements so one fetch can
// serve every consumer. The zero value requests nothing.
type Fields struct {
	Expansions []string
	Media      []string
	Places     []string
	Polls      []string
	Tweets     []string
	Users      []string
}

// Union merges two field requirements group-wise. The merge is a set union:
// commutative, associative, and idempotent. Neither input is mutated and the
// result's groups are sorted and deduplicated.
func (f Fields) Union(other Fields) Fields {
	return Fields{
		Expansions: mergeSets(f.Expansions, other.Expansions),
		Media:      mergeSets(f.Media, other.Media),
		Places:     mergeSets(f.Places, other.Places),
		Polls:      mergeSets(f.Polls, other.Polls),
		Tweets:     mergeSets(f.Tweets, other.Tweets),
		Users:      mergeSets(f.Users, other.Users),
	}
}

// Encode writes the non-empty groups into q using the API's query parameter
// names, comma-joining each group's values.
func (f Fields) Encode(q url.Values) {
	setGroup(q, "expansions", f.Expansions)
	setGroup(q, "media.fields", f.Media)
	setGroup(q, "place.fields", f.Places)
	setGroup(q, "poll.fields", f.Polls)
	setGroup(q, "tweet.fields", f.Tweets)
	setGroup(q, "user.fields", f.Users)
}

func setGroup(q url.Values, key string, values []string) {
	if len(values) == 0 {
		return
	}
	sorted := mergeSets(values, nil)
	q.Set(key, strings.Join(sorted, ","))
}

func mergeSets(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, values := range [][]string{a, b} {
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			merged = append(merged, v)
		}
	}
	sort.Strings(merged)
	return merged
}
