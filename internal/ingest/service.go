// Package ingest applies upstream ("CG") sync records to the entity store.
// It is the only writer: it validates invariants before anything lands,
// resolves cross-references through the resolver, and applies each logical
// record in one transaction.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"entree-api/internal/logger"
	"entree-api/internal/models"
	"entree-api/internal/resolver"
	"entree-api/internal/store"
)

// Record types for one sync cycle. Link ids arrive already resolved to local
// identifiers by the upstream fetcher matching CG foreign keys.

type ConcertRecord struct {
	Concert models.Concert `json:"concert"`
	EventID string         `json:"eventId,omitempty"` // side-event to link, optional
	Offers  []SeatOffer    `json:"offers,omitempty"`
}

type EventRecord struct {
	Event     models.Event `json:"event"`
	ConcertID string       `json:"concertId,omitempty"`
}

type NewsRecord struct {
	News      models.News `json:"news"`
	ConcertID string      `json:"concertId,omitempty"`
	EventID   string      `json:"eventId,omitempty"`
}

type ConcertgebouwEventRecord struct {
	ID   int64     `json:"id"`
	Date time.Time `json:"date"`
}

type TicketRecord struct {
	Ticket  models.Ticket `json:"ticket"`
	EventID int64         `json:"eventId"` // mandatory concertgebouw event reference
}

// Envelope wraps one record on the sync topic.
type Envelope struct {
	Type    string          `json:"type"` // concert | event | news | concertgebouw_event | ticket
	Payload json.RawMessage `json:"payload"`
}

// Reporter receives records that were skipped during a sync. The kafka
// producer implements it; a nil reporter just drops the reports.
type Reporter interface {
	ReportSkipped(ctx context.Context, env Envelope, cause error) error
}

// Invalidator lets the ingest drop stale read-cache entries after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// SyncStats summarizes one batch.
type SyncStats struct {
	Applied int
	Skipped int
}

type Service struct {
	DB       *store.DB
	Resolver *resolver.Resolver
	Log      *logger.Logger
	Reporter Reporter    // optional
	Cache    Invalidator // optional
}

func New(db *store.DB, res *resolver.Resolver, log *logger.Logger) *Service {
	return &Service{DB: db, Resolver: res, Log: log}
}

// SyncConcert inserts or refreshes one concert. Concerts are keyed naturally
// by their upstream event id, so a re-synced concert keeps its local
// identifier and its event link. Tier buckets are rebuilt from the offers in
// the record on every sync.
func (s *Service) SyncConcert(ctx context.Context, rec ConcertRecord) error {
	concert := rec.Concert
	if concert.ConcertgebouwEventID == 0 {
		return &store.InvariantViolationError{Reason: "concert is missing its concertgebouw event id"}
	}
	if concert.StartDate.After(concert.EndDate) {
		return &store.InvariantViolationError{Reason: fmt.Sprintf(
			"concert %q starts %s after it ends %s",
			concert.Title, concert.StartDate.Format(time.RFC3339), concert.EndDate.Format(time.RFC3339),
		)}
	}
	concert.Tickets0To25, concert.Tickets26To30, concert.Tickets31To35 = AggregateTiers(rec.Offers)

	err := s.DB.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.DB.ConcertByCGEventID(ctx, concert.ConcertgebouwEventID)
		var notFound *store.NotFoundError
		switch {
		case err == nil:
			concert.ID = existing.ID
			concert.EventID = existing.EventID
			if err := s.DB.UpdateConcert(ctx, &concert); err != nil {
				return err
			}
		case errors.As(err, &notFound):
			if concert.ID == "" {
				concert.ID = models.NewID()
			}
			if err := s.DB.InsertConcert(ctx, &concert); err != nil {
				return err
			}
		default:
			return err
		}
		if rec.EventID != "" {
			return s.Resolver.LinkConcertAndEvent(ctx, concert.ID, rec.EventID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, "concert:"+concert.ID)
	return nil
}

// SyncEvent inserts or refreshes one side-event and optionally links it to a
// concert.
func (s *Service) SyncEvent(ctx context.Context, rec EventRecord) error {
	event := rec.Event
	err := s.DB.RunInTx(ctx, func(ctx context.Context) error {
		if event.ID == "" {
			event.ID = models.NewID()
			if err := s.DB.InsertEvent(ctx, &event); err != nil {
				return err
			}
		} else {
			existing, err := s.DB.GetEventByID(ctx, event.ID)
			var notFound *store.NotFoundError
			switch {
			case err == nil:
				event.ConcertID = existing.ConcertID
				if err := s.DB.UpdateEvent(ctx, &event); err != nil {
					return err
				}
			case errors.As(err, &notFound):
				if err := s.DB.InsertEvent(ctx, &event); err != nil {
					return err
				}
			default:
				return err
			}
		}
		if rec.ConcertID != "" {
			return s.Resolver.LinkConcertAndEvent(ctx, rec.ConcertID, event.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, "event:"+event.ID)
	return nil
}

// SyncNews inserts or refreshes one news item with its independent concert
// and event references.
func (s *Service) SyncNews(ctx context.Context, rec NewsRecord) error {
	news := rec.News
	err := s.DB.RunInTx(ctx, func(ctx context.Context) error {
		if news.ID == "" {
			news.ID = models.NewID()
			if err := s.DB.InsertNews(ctx, &news); err != nil {
				return err
			}
		} else {
			existing, err := s.DB.GetNewsByID(ctx, news.ID)
			var notFound *store.NotFoundError
			switch {
			case err == nil:
				news.ConcertID = existing.ConcertID
				news.EventID = existing.EventID
				if err := s.DB.UpdateNews(ctx, &news); err != nil {
					return err
				}
			case errors.As(err, &notFound):
				if err := s.DB.InsertNews(ctx, &news); err != nil {
					return err
				}
			default:
				return err
			}
		}
		if rec.ConcertID != "" {
			if err := s.Resolver.LinkNewsToConcert(ctx, news.ID, rec.ConcertID); err != nil {
				return err
			}
		}
		if rec.EventID != "" {
			return s.Resolver.LinkNewsToEvent(ctx, news.ID, rec.EventID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, "news:"+news.ID)
	return nil
}

// SyncConcertgebouwEvent upserts the shadow record. A date change propagates
// to the denormalized event_date of every ticket referencing the event, in
// the same transaction, and drops the cached bodies of those tickets.
func (s *Service) SyncConcertgebouwEvent(ctx context.Context, rec ConcertgebouwEventRecord) error {
	if rec.ID == 0 {
		return &store.InvariantViolationError{Reason: "concertgebouw event is missing its upstream id"}
	}
	var redated []string
	err := s.DB.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.DB.GetConcertgebouwEventByID(ctx, rec.ID)
		var notFound *store.NotFoundError
		switch {
		case err == nil:
			if existing.Date.Equal(rec.Date) {
				return nil
			}
			existing.Date = rec.Date
			if err := s.DB.UpdateConcertgebouwEvent(ctx, existing); err != nil {
				return err
			}
			redated, err = s.DB.TicketIDsForEvent(ctx, rec.ID)
			if err != nil {
				return err
			}
			return s.DB.RedateTicketsForEvent(ctx, rec.ID, rec.Date)
		case errors.As(err, &notFound):
			return s.DB.InsertConcertgebouwEvent(ctx, &models.ConcertgebouwEvent{ID: rec.ID, Date: rec.Date})
		default:
			return err
		}
	})
	if err != nil {
		return err
	}
	if len(redated) > 0 {
		keys := make([]string, 0, len(redated))
		for _, id := range redated {
			keys = append(keys, "ticket:"+id)
		}
		s.invalidate(ctx, keys...)
	}
	return nil
}

// SyncTicket inserts or refreshes one ticket. The concertgebouw event
// reference is mandatory and the barcode must not collide with another
// ticket; the first ticket holding a barcode wins.
func (s *Service) SyncTicket(ctx context.Context, rec TicketRecord) error {
	ticket := rec.Ticket
	if rec.EventID == 0 {
		return &store.InvariantViolationError{Reason: "ticket must reference a concertgebouw event"}
	}
	if ticket.Barcode == "" {
		return &store.InvariantViolationError{Reason: "ticket is missing its barcode"}
	}
	err := s.DB.RunInTx(ctx, func(ctx context.Context) error {
		event, err := s.DB.GetConcertgebouwEventByID(ctx, rec.EventID)
		if err != nil {
			var notFound *store.NotFoundError
			if errors.As(err, &notFound) {
				return &store.DanglingReferenceError{
					Entity:   "ticket",
					Target:   "concertgebouw event",
					TargetID: strconv.FormatInt(rec.EventID, 10),
				}
			}
			return err
		}

		holder, err := s.DB.TicketByBarcode(ctx, ticket.Barcode)
		var notFound *store.NotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return err
		}
		if holder != nil && holder.ID != ticket.ID {
			return &store.InvariantViolationError{Reason: fmt.Sprintf(
				"barcode %s already belongs to ticket %s", ticket.Barcode, holder.ID,
			)}
		}

		ticket.EventID = event.ID
		ticket.EventDate = event.Date

		if ticket.ID == "" {
			ticket.ID = models.NewID()
			return s.DB.InsertTicket(ctx, &ticket)
		}
		if holder != nil && holder.ID == ticket.ID {
			return s.DB.UpdateTicket(ctx, &ticket)
		}
		if _, err := s.DB.GetTicketByID(ctx, ticket.ID); err == nil {
			return s.DB.UpdateTicket(ctx, &ticket)
		} else if !errors.As(err, &notFound) {
			return err
		}
		return s.DB.InsertTicket(ctx, &ticket)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, "ticket:"+ticket.ID)
	return nil
}

// Apply dispatches one envelope to the matching sync operation.
func (s *Service) Apply(ctx context.Context, env Envelope) error {
	switch env.Type {
	case "concert":
		var rec ConcertRecord
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return &store.InvariantViolationError{Reason: "malformed concert payload: " + err.Error()}
		}
		return s.SyncConcert(ctx, rec)
	case "event":
		var rec EventRecord
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return &store.InvariantViolationError{Reason: "malformed event payload: " + err.Error()}
		}
		return s.SyncEvent(ctx, rec)
	case "news":
		var rec NewsRecord
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return &store.InvariantViolationError{Reason: "malformed news payload: " + err.Error()}
		}
		return s.SyncNews(ctx, rec)
	case "concertgebouw_event":
		var rec ConcertgebouwEventRecord
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return &store.InvariantViolationError{Reason: "malformed concertgebouw event payload: " + err.Error()}
		}
		return s.SyncConcertgebouwEvent(ctx, rec)
	case "ticket":
		var rec TicketRecord
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return &store.InvariantViolationError{Reason: "malformed ticket payload: " + err.Error()}
		}
		return s.SyncTicket(ctx, rec)
	default:
		return &store.InvariantViolationError{Reason: "unknown record type " + env.Type}
	}
}

// ApplyBatch applies a whole sync cycle with skip-and-report semantics:
// records that break an invariant or point at a missing target are logged,
// reported and counted, but never abort the rest of the batch. Storage
// failures do abort, since continuing would desynchronize the store.
func (s *Service) ApplyBatch(ctx context.Context, envs []Envelope) (*SyncStats, error) {
	stats := &SyncStats{}
	for _, env := range envs {
		err := s.Apply(ctx, env)
		switch {
		case err == nil:
			stats.Applied++
		case isSkippable(err):
			stats.Skipped++
			s.report(ctx, env, err)
		default:
			return stats, err
		}
	}
	if s.Log != nil {
		s.Log.LogSync("batch", fmt.Sprintf("applied=%d skipped=%d", stats.Applied, stats.Skipped))
	}
	return stats, nil
}

// Handle processes a single envelope from the sync topic. Skippable records
// are reported and swallowed so the consumer keeps going.
func (s *Service) Handle(ctx context.Context, env Envelope) error {
	err := s.Apply(ctx, env)
	if err == nil {
		return nil
	}
	if isSkippable(err) {
		s.report(ctx, env, err)
		return nil
	}
	return err
}

// isSkippable: resolved at the ingestion boundary, the record is dropped and
// the sync continues.
func isSkippable(err error) bool {
	var dangling *store.DanglingReferenceError
	var invariant *store.InvariantViolationError
	return errors.As(err, &dangling) || errors.As(err, &invariant)
}

func (s *Service) report(ctx context.Context, env Envelope, cause error) {
	if s.Log != nil {
		s.Log.Warn("SYNC", fmt.Sprintf("skipped %s record: %v", env.Type, cause))
	}
	if s.Reporter == nil {
		return
	}
	if err := s.Reporter.ReportSkipped(ctx, env, cause); err != nil && s.Log != nil {
		s.Log.Error("SYNC", fmt.Sprintf("failed to report skipped %s record: %v", env.Type, err))
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, keys...)
	}
}
