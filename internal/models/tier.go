package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Tier is one age-band price bucket offered for a concert. A Tier is either
// absent (the band is not offered at all) or present with a remaining
// availability count and a pre-formatted price string. A present tier with
// availability 0 means sold out, which is not the same thing as absent.
type Tier struct {
	present      bool
	availability uint
	price        string
}

// PresentTier returns an offered tier with the given remaining availability
// and formatted price (e.g. "€25").
func PresentTier(availability uint, price string) Tier {
	return Tier{present: true, availability: availability, price: price}
}

// Present reports whether the band is offered for the concert.
func (t Tier) Present() bool { return t.present }

// Availability returns the remaining seat count. Only meaningful when the
// tier is present.
func (t Tier) Availability() uint { return t.availability }

// Price returns the formatted price string as supplied by the upstream
// system.
func (t Tier) Price() string { return t.price }

type tierJSON struct {
	Availability uint   `json:"availability"`
	Price        string `json:"price"`
}

func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.present {
		return []byte("null"), nil
	}
	return json.Marshal(tierJSON{Availability: t.availability, Price: t.price})
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Tier{}
		return nil
	}
	var v tierJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = PresentTier(v.Availability, v.Price)
	return nil
}

// Value stores an absent tier as SQL NULL and a present one as JSON.
func (t Tier) Value() (driver.Value, error) {
	if !t.present {
		return nil, nil
	}
	return json.Marshal(tierJSON{Availability: t.availability, Price: t.price})
}

func (t *Tier) Scan(src interface{}) error {
	if src == nil {
		*t = Tier{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return t.UnmarshalJSON(v)
	case string:
		return t.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Tier", src)
	}
}
