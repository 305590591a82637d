package twitter

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// EncodePostID embeds a numeric tweet id into a UUID as its 128-bit
// big-endian integer value. The mapping is reversible with DecodePostID, so
// externally-visible post ids can be resolved back to tweets without a
// lookup table.
func EncodePostID(tweetID int64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], uint64(tweetID))
	return id
}

// DecodePostID recovers the tweet id embedded in a post id. It fails for
// UUIDs that were not produced by EncodePostID.
func DecodePostID(id uuid.UUID) (int64, error) {
	for _, b := range id[:8] {
		if b != 0 {
			return 0, fmt.Errorf("post id %s does not carry a tweet id", id)
		}
	}
	value := binary.BigEndian.Uint64(id[8:])
	if value > 1<<63-1 {
		return 0, fmt.Errorf("post id %s does not carry a tweet id", id)
	}
	return int64(value), nil
}
