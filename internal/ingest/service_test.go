package ingest_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"entree-api/internal/ingest"
	"entree-api/internal/models"
	"entree-api/internal/resolver"
	"entree-api/internal/store"
)

func setupService(t *testing.T) (*store.DB, *ingest.Service) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	err = bunDB.ResetModel(context.Background(),
		(*models.ConcertgebouwEvent)(nil),
		(*models.Event)(nil),
		(*models.Concert)(nil),
		(*models.News)(nil),
		(*models.Ticket)(nil),
	)
	require.NoError(t, err)

	t.Cleanup(func() { bunDB.Close() })
	db := store.New(bunDB)
	return db, ingest.New(db, resolver.New(db), nil)
}

func concertRecord(cgEventID int64) ingest.ConcertRecord {
	day := time.Date(2020, 10, 3, 20, 15, 0, 0, time.UTC)
	return ingest.ConcertRecord{
		Concert: models.Concert{
			Title:                "Openingsnacht",
			Date:                 day,
			StartDate:            day,
			EndDate:              day.Add(2 * time.Hour),
			ConcertgebouwEventID: cgEventID,
		},
	}
}

func TestSyncConcertRejectsInvertedDates(t *testing.T) {
	_, svc := setupService(t)

	rec := concertRecord(1)
	rec.Concert.StartDate = rec.Concert.EndDate.Add(time.Hour)

	err := svc.SyncConcert(context.Background(), rec)

	var violation *store.InvariantViolationError
	require.ErrorAs(t, err, &violation)
}

func TestSyncConcertRejectsMissingUpstreamID(t *testing.T) {
	_, svc := setupService(t)

	err := svc.SyncConcert(context.Background(), concertRecord(0))

	var violation *store.InvariantViolationError
	require.ErrorAs(t, err, &violation)
}

func TestSyncConcertKeepsIdentityAcrossCycles(t *testing.T) {
	db, svc := setupService(t)
	ctx := context.Background()

	event := &models.Event{ID: uuid.NewString(), Title: "Inleiding", Date: time.Now().UTC()}
	require.NoError(t, db.InsertEvent(ctx, event))

	first := concertRecord(111947)
	first.EventID = event.ID
	require.NoError(t, svc.SyncConcert(ctx, first))

	created, err := db.ConcertByCGEventID(ctx, 111947)
	require.NoError(t, err)
	require.Equal(t, event.ID, created.EventID)

	// A later cycle re-sends the same upstream concert with fresh data and no
	// link information. Local id and event link survive.
	second := concertRecord(111947)
	second.Concert.Title = "Openingsnacht (gewijzigd)"
	second.Offers = []ingest.SeatOffer{{AgeFrom: 18, AgeTo: 25, Price: "€10", Availability: 4}}
	require.NoError(t, svc.SyncConcert(ctx, second))

	updated, err := db.ConcertByCGEventID(ctx, 111947)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, event.ID, updated.EventID)
	assert.Equal(t, "Openingsnacht (gewijzigd)", updated.Title)
	assert.True(t, updated.Tickets0To25.Present())
	assert.Equal(t, uint(4), updated.Tickets0To25.Availability())
	assert.False(t, updated.Tickets26To30.Present())
}

func TestSyncEventWithUnknownConcertIsSkipped(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	rec := ingest.EventRecord{
		Event:     models.Event{Title: "Inleiding", Date: time.Now().UTC()},
		ConcertID: "no-such-concert",
	}

	err := svc.SyncEvent(ctx, rec)
	var dangling *store.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "concert", dangling.Target)

	// The record fails alone; the rest of the cycle keeps going.
	reporter := &recordingReporter{}
	svc.Reporter = reporter
	stats, err := svc.ApplyBatch(ctx, []ingest.Envelope{mustEnvelope(t, "event", rec)})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Applied)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, reporter.skipped, 1)
}

func TestSyncTicketRequiresExistingEvent(t *testing.T) {
	_, svc := setupService(t)

	err := svc.SyncTicket(context.Background(), ingest.TicketRecord{
		Ticket:  models.Ticket{Barcode: "123"},
		EventID: 999,
	})

	var dangling *store.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
}

func TestSyncTicketDuplicateBarcodeFirstWins(t *testing.T) {
	db, svc := setupService(t)
	ctx := context.Background()

	date := time.Date(2020, 12, 24, 20, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertConcertgebouwEvent(ctx, &models.ConcertgebouwEvent{ID: 5, Date: date}))

	first := ingest.TicketRecord{
		Ticket:  models.Ticket{Barcode: "8517236", Row: "A", SeatNumber: "1"},
		EventID: 5,
	}
	require.NoError(t, svc.SyncTicket(ctx, first))

	second := ingest.TicketRecord{
		Ticket:  models.Ticket{Barcode: "8517236", Row: "B", SeatNumber: "2"},
		EventID: 5,
	}
	err := svc.SyncTicket(ctx, second)

	var violation *store.InvariantViolationError
	require.ErrorAs(t, err, &violation)

	holder, err := db.TicketByBarcode(ctx, "8517236")
	require.NoError(t, err)
	assert.Equal(t, "A", holder.Row)
}

func TestSyncConcertgebouwEventRedatesTickets(t *testing.T) {
	db, svc := setupService(t)
	ctx := context.Background()

	oldDate := time.Date(2020, 12, 24, 20, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SyncConcertgebouwEvent(ctx, ingest.ConcertgebouwEventRecord{ID: 5, Date: oldDate}))
	require.NoError(t, svc.SyncTicket(ctx, ingest.TicketRecord{
		Ticket:  models.Ticket{Barcode: "111"},
		EventID: 5,
	}))

	newDate := time.Date(2021, 1, 8, 20, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SyncConcertgebouwEvent(ctx, ingest.ConcertgebouwEventRecord{ID: 5, Date: newDate}))

	ticket, err := db.TicketByBarcode(ctx, "111")
	require.NoError(t, err)
	assert.True(t, ticket.EventDate.Equal(newDate), "ticket date follows the rescheduled event")
}

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...string) {
	r.keys = append(r.keys, keys...)
}

func TestRedateDropsCachedTickets(t *testing.T) {
	db, svc := setupService(t)
	ctx := context.Background()

	invalidator := &recordingInvalidator{}
	svc.Cache = invalidator

	oldDate := time.Date(2020, 12, 24, 20, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SyncConcertgebouwEvent(ctx, ingest.ConcertgebouwEventRecord{ID: 5, Date: oldDate}))
	require.NoError(t, svc.SyncTicket(ctx, ingest.TicketRecord{Ticket: models.Ticket{Barcode: "111"}, EventID: 5}))
	require.NoError(t, svc.SyncTicket(ctx, ingest.TicketRecord{Ticket: models.Ticket{Barcode: "222"}, EventID: 5}))

	ticketA, err := db.TicketByBarcode(ctx, "111")
	require.NoError(t, err)
	ticketB, err := db.TicketByBarcode(ctx, "222")
	require.NoError(t, err)

	invalidator.keys = nil
	newDate := time.Date(2021, 1, 8, 20, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SyncConcertgebouwEvent(ctx, ingest.ConcertgebouwEventRecord{ID: 5, Date: newDate}))

	assert.ElementsMatch(t, []string{"ticket:" + ticketA.ID, "ticket:" + ticketB.ID}, invalidator.keys)
}

type recordingReporter struct {
	skipped []ingest.Envelope
}

func (r *recordingReporter) ReportSkipped(_ context.Context, env ingest.Envelope, _ error) error {
	r.skipped = append(r.skipped, env)
	return nil
}

func mustEnvelope(t *testing.T, typ string, payload interface{}) ingest.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return ingest.Envelope{Type: typ, Payload: raw}
}

func TestApplyBatchSkipsAndReports(t *testing.T) {
	_, svc := setupService(t)
	reporter := &recordingReporter{}
	svc.Reporter = reporter

	bad := concertRecord(2)
	bad.Concert.StartDate = bad.Concert.EndDate.Add(time.Hour)

	envs := []ingest.Envelope{
		mustEnvelope(t, "concert", concertRecord(1)),
		mustEnvelope(t, "concert", bad),
		mustEnvelope(t, "ticket", ingest.TicketRecord{Ticket: models.Ticket{Barcode: "1"}, EventID: 404}),
		mustEnvelope(t, "concertgebouw_event", ingest.ConcertgebouwEventRecord{ID: 9, Date: time.Now().UTC()}),
	}

	stats, err := svc.ApplyBatch(context.Background(), envs)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 2, stats.Skipped)
	require.Len(t, reporter.skipped, 2)
	assert.Equal(t, "concert", reporter.skipped[0].Type)
	assert.Equal(t, "ticket", reporter.skipped[1].Type)
}

func TestApplyUnknownTypeIsSkippable(t *testing.T) {
	_, svc := setupService(t)

	stats, err := svc.ApplyBatch(context.Background(), []ingest.Envelope{
		{Type: "venue", Payload: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Applied)
	assert.Equal(t, 1, stats.Skipped)
}
