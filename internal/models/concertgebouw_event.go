package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ConcertgebouwEvent is the local shadow of one scheduled performance as the
// upstream ticketing system knows it. It keeps the upstream integer id so
// ticket rows stay joinable against CG exports.
type ConcertgebouwEvent struct {
	bun.BaseModel `bun:"table:concertgebouw_events"`

	ID   int64     `bun:"id,pk" json:"id"`
	Date time.Time `bun:"date,notnull" json:"date"`
}
