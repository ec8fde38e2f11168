package models

import "github.com/google/uuid"

// NewID mints an opaque identifier for locally owned entities (concerts,
// events, news, tickets). ConcertgebouwEvent keeps the upstream integer id
// instead, so the two kinds of identifier cannot be mixed up by type.
func NewID() string {
	return uuid.NewString()
}
