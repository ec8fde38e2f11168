// Package resolver materializes the cross-entity links and keeps every
// denormalized shadow field in step with the reference it mirrors. All link
// operations run inside one store transaction, so a reader can never observe
// one side of a link without the other.
package resolver

import (
	"context"
	"errors"
	"strconv"

	"entree-api/internal/store"
)

// Invalidator drops read-cache entries for entities a link operation
// rewrote. The api cache implements it; a nil field means no cache.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

type Resolver struct {
	DB    *store.DB
	Cache Invalidator // optional
}

func New(db *store.DB) *Resolver {
	return &Resolver{DB: db}
}

// LinkConcertAndEvent ties a concert and a side-event together. Both
// back-references change in the same transaction; re-linking an already
// linked pair is a no-op. When either side was previously linked elsewhere,
// the old counterpart is detached in the same transaction so no third entity
// keeps claiming one of the pair. Linking to a missing concert or event
// fails with DanglingReferenceError.
func (r *Resolver) LinkConcertAndEvent(ctx context.Context, concertID, eventID string) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		var notFound *store.NotFoundError

		concert, err := r.DB.GetConcertByID(ctx, concertID)
		if err != nil {
			if errors.As(err, &notFound) {
				return &store.DanglingReferenceError{Entity: "event", Target: "concert", TargetID: concertID}
			}
			return err
		}
		event, err := r.DB.GetEventByID(ctx, eventID)
		if err != nil {
			if errors.As(err, &notFound) {
				return &store.DanglingReferenceError{Entity: "concert", Target: "event", TargetID: eventID}
			}
			return err
		}
		if concert.EventID == eventID && event.ConcertID == concertID {
			return nil
		}

		if concert.EventID != "" && concert.EventID != eventID {
			oldEvent, err := r.DB.GetEventByID(ctx, concert.EventID)
			if err != nil {
				return err
			}
			oldEvent.ConcertID = ""
			if err := r.DB.UpdateEvent(ctx, oldEvent); err != nil {
				return err
			}
			touched = append(touched, "event:"+oldEvent.ID)
		}
		if event.ConcertID != "" && event.ConcertID != concertID {
			oldConcert, err := r.DB.GetConcertByID(ctx, event.ConcertID)
			if err != nil {
				return err
			}
			oldConcert.EventID = ""
			if err := r.DB.UpdateConcert(ctx, oldConcert); err != nil {
				return err
			}
			touched = append(touched, "concert:"+oldConcert.ID)
		}

		concert.EventID = event.ID
		if err := r.DB.UpdateConcert(ctx, concert); err != nil {
			return err
		}
		event.ConcertID = concert.ID
		if err := r.DB.UpdateEvent(ctx, event); err != nil {
			return err
		}
		touched = append(touched, "concert:"+concert.ID, "event:"+event.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// UnlinkConcertAndEvent clears the link on both sides. Clearing a concert
// that is not linked is a no-op.
func (r *Resolver) UnlinkConcertAndEvent(ctx context.Context, concertID string) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		concert, err := r.DB.GetConcertByID(ctx, concertID)
		if err != nil {
			return err
		}
		if concert.EventID == "" {
			return nil
		}
		event, err := r.DB.GetEventByID(ctx, concert.EventID)
		if err != nil {
			return err
		}
		concert.EventID = ""
		if err := r.DB.UpdateConcert(ctx, concert); err != nil {
			return err
		}
		event.ConcertID = ""
		if err := r.DB.UpdateEvent(ctx, event); err != nil {
			return err
		}
		touched = append(touched, "concert:"+concert.ID, "event:"+event.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// LinkNewsToConcert points a news item at a concert.
func (r *Resolver) LinkNewsToConcert(ctx context.Context, newsID, concertID string) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		news, err := r.DB.GetNewsByID(ctx, newsID)
		if err != nil {
			return err
		}
		concert, err := r.DB.GetConcertByID(ctx, concertID)
		if err != nil {
			var notFound *store.NotFoundError
			if errors.As(err, &notFound) {
				return &store.DanglingReferenceError{Entity: "news", Target: "concert", TargetID: concertID}
			}
			return err
		}
		if news.ConcertID == concert.ID {
			return nil
		}
		news.ConcertID = concert.ID
		if err := r.DB.UpdateNews(ctx, news); err != nil {
			return err
		}
		touched = append(touched, "news:"+news.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// ClearNewsConcert drops a news item's concert reference along with its
// shadow id.
func (r *Resolver) ClearNewsConcert(ctx context.Context, newsID string) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		news, err := r.DB.GetNewsByID(ctx, newsID)
		if err != nil {
			return err
		}
		if news.ConcertID == "" {
			return nil
		}
		news.ConcertID = ""
		if err := r.DB.UpdateNews(ctx, news); err != nil {
			return err
		}
		touched = append(touched, "news:"+news.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// LinkNewsToEvent points a news item at a side-event, independently of any
// concert reference it holds.
func (r *Resolver) LinkNewsToEvent(ctx context.Context, newsID, eventID string) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		news, err := r.DB.GetNewsByID(ctx, newsID)
		if err != nil {
			return err
		}
		event, err := r.DB.GetEventByID(ctx, eventID)
		if err != nil {
			var notFound *store.NotFoundError
			if errors.As(err, &notFound) {
				return &store.DanglingReferenceError{Entity: "news", Target: "event", TargetID: eventID}
			}
			return err
		}
		if news.EventID == event.ID {
			return nil
		}
		news.EventID = event.ID
		if err := r.DB.UpdateNews(ctx, news); err != nil {
			return err
		}
		touched = append(touched, "news:"+news.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// ClearNewsEvent drops a news item's event reference.
func (r *Resolver) ClearNewsEvent(ctx context.Context, newsID string) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		news, err := r.DB.GetNewsByID(ctx, newsID)
		if err != nil {
			return err
		}
		if news.EventID == "" {
			return nil
		}
		news.EventID = ""
		if err := r.DB.UpdateNews(ctx, news); err != nil {
			return err
		}
		touched = append(touched, "news:"+news.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// LinkTicketToEvent points a ticket at its Concertgebouw event and copies
// the event's id and date into the ticket's denormalized columns.
func (r *Resolver) LinkTicketToEvent(ctx context.Context, ticketID string, cgEventID int64) error {
	var touched []string
	err := r.DB.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := r.DB.GetTicketByID(ctx, ticketID)
		if err != nil {
			return err
		}
		event, err := r.DB.GetConcertgebouwEventByID(ctx, cgEventID)
		if err != nil {
			var notFound *store.NotFoundError
			if errors.As(err, &notFound) {
				return &store.DanglingReferenceError{
					Entity:   "ticket",
					Target:   "concertgebouw event",
					TargetID: strconv.FormatInt(cgEventID, 10),
				}
			}
			return err
		}
		if ticket.EventID == event.ID && ticket.EventDate.Equal(event.Date) {
			return nil
		}
		ticket.EventID = event.ID
		ticket.EventDate = event.Date
		if err := r.DB.UpdateTicket(ctx, ticket); err != nil {
			return err
		}
		touched = append(touched, "ticket:"+ticket.ID)
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(ctx, touched)
	return nil
}

// ClearTicketEvent always fails: a ticket's event reference is mandatory.
func (r *Resolver) ClearTicketEvent(ctx context.Context, ticketID string) error {
	return &store.InvariantViolationError{
		Reason: "ticket " + ticketID + " must reference a concertgebouw event",
	}
}

func (r *Resolver) invalidate(ctx context.Context, keys []string) {
	if r.Cache != nil && len(keys) > 0 {
		r.Cache.Invalidate(ctx, keys...)
	}
}
