// ABOUTME: Session id handling for conversation correlation across requests
// ABOUTME: Echoes caller-supplied ids and mints time-ordered fresh ones

package session

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Resolve returns the session id for a chat turn. A caller-supplied id is
// echoed unchanged and unvalidated; the gateway keys no server-side state by
// it. An absent id gets a freshly minted one.
func Resolve(supplied string) string {
	if supplied != "" {
		return supplied
	}
	return Mint()
}

// Mint creates a fresh session id from a time-ordered component plus a random
// suffix, so ids sort by creation time in logs while staying unguessable.
func Mint() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := uuid.NewString()[:8]
	return ts + "-" + suffix
}
