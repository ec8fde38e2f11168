package ingest

import "entree-api/internal/models"

// SeatOffer is one raw inventory line from a CG sync cycle: a price offered
// to an age range, with the seats still available at that price. Offers
// describe what is for sale; they are not Ticket entities, which model
// purchased seats.
type SeatOffer struct {
	AgeFrom      int    `json:"ageFrom"`
	AgeTo        int    `json:"ageTo"`
	Price        string `json:"price"`
	Availability uint   `json:"availability"`
}

// ageBand is one of the fixed buckets a concert may offer.
type ageBand struct {
	from, to int
}

var (
	band0To25  = ageBand{0, 25}
	band26To30 = ageBand{26, 30}
	band31To35 = ageBand{31, 35}
)

func (b ageBand) covers(o SeatOffer) bool {
	return o.AgeFrom >= b.from && o.AgeTo <= b.to && o.AgeFrom <= o.AgeTo
}

// AggregateTiers buckets raw seat offers into the three fixed age bands. A
// band with no offers at all comes back absent; a band whose offers are all
// gone comes back present with availability 0, so callers can tell "not
// offered" from "sold out". Offers outside every band (regular-price seats)
// are ignored here; they feed the concert's normal price upstream.
func AggregateTiers(offers []SeatOffer) (t0To25, t26To30, t31To35 models.Tier) {
	return bucket(offers, band0To25), bucket(offers, band26To30), bucket(offers, band31To35)
}

func bucket(offers []SeatOffer, band ageBand) models.Tier {
	var (
		offered      bool
		availability uint
		price        string
	)
	for _, o := range offers {
		if !band.covers(o) {
			continue
		}
		offered = true
		availability += o.Availability
		if price == "" {
			price = o.Price
		}
	}
	if !offered {
		return models.Tier{}
	}
	return models.PresentTier(availability, price)
}
