package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is one purchased seat. Its ConcertgebouwEvent reference is
// mandatory; EventID and EventDate are denormalized copies of the referenced
// event's key and date, maintained by the resolver and never set
// independently.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID         string `bun:"id,pk" json:"id"`
	RoomName   string `bun:"room_name" json:"roomName"`
	Row        string `bun:"row" json:"row"`
	SeatNumber string `bun:"seat_number" json:"seatNumber"` // text, seat codes can be alphanumeric
	AreaName   string `bun:"area_name" json:"areaName"`
	PriceLevel string `bun:"price_level" json:"priceLevel"`
	Barcode    string `bun:"barcode,notnull,unique" json:"barcode"`

	Event     *ConcertgebouwEvent `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	EventID   int64               `bun:"event_id,notnull" json:"eventId"`
	EventDate time.Time           `bun:"event_date,notnull" json:"eventDate"`
}
