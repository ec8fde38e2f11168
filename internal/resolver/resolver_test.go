package resolver_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"entree-api/internal/models"
	"entree-api/internal/resolver"
	"entree-api/internal/store"
)

func setupResolver(t *testing.T) (*store.DB, *resolver.Resolver) {
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
	return db, resolver.New(db)
}

func seedConcert(t *testing.T, db *store.DB) *models.Concert {
	t.Helper()
	day := time.Date(2020, 10, 3, 20, 15, 0, 0, time.UTC)
	concert := &models.Concert{
		ID:                   uuid.NewString(),
		Title:                "Openingsnacht",
		Date:                 day,
		StartDate:            day,
		EndDate:              day.Add(2 * time.Hour),
		ConcertgebouwEventID: 111947,
	}
	require.NoError(t, db.InsertConcert(context.Background(), concert))
	return concert
}

func seedEvent(t *testing.T, db *store.DB) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:    uuid.NewString(),
		Title: "Inleiding vooraf",
		Date:  time.Date(2020, 10, 3, 19, 30, 0, 0, time.UTC),
	}
	require.NoError(t, db.InsertEvent(context.Background(), event))
	return event
}

func TestLinkConcertAndEventRoundTrip(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	concert := seedConcert(t, db)
	event := seedEvent(t, db)

	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, event.ID))

	gotConcert, err := db.GetConcertByID(ctx, concert.ID)
	require.NoError(t, err)
	gotEvent, err := db.GetEventByID(ctx, event.ID)
	require.NoError(t, err)

	assert.Equal(t, event.ID, gotConcert.EventID)
	assert.Equal(t, concert.ID, gotEvent.ConcertID)

	// Re-linking the same pair changes nothing.
	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, event.ID))
}

func TestLinkEventToMissingConcert(t *testing.T) {
	db, res := setupResolver(t)
	event := seedEvent(t, db)

	err := res.LinkConcertAndEvent(context.Background(), "no-such-concert", event.ID)

	var dangling *store.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "concert", dangling.Target)

	got, getErr := db.GetEventByID(context.Background(), event.ID)
	require.NoError(t, getErr)
	assert.Empty(t, got.ConcertID)
}

func TestRelinkConcertDetachesOldEvent(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	concert := seedConcert(t, db)
	first := seedEvent(t, db)
	second := seedEvent(t, db)

	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, first.ID))
	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, second.ID))

	gotFirst, err := db.GetEventByID(ctx, first.ID)
	require.NoError(t, err)
	gotSecond, err := db.GetEventByID(ctx, second.ID)
	require.NoError(t, err)
	gotConcert, err := db.GetConcertByID(ctx, concert.ID)
	require.NoError(t, err)

	assert.Empty(t, gotFirst.ConcertID, "replaced event must no longer claim the concert")
	assert.Equal(t, concert.ID, gotSecond.ConcertID)
	assert.Equal(t, second.ID, gotConcert.EventID)
}

func TestRelinkEventDetachesOldConcert(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	first := seedConcert(t, db)
	second := &models.Concert{
		ID:                   uuid.NewString(),
		Title:                "Tweede concert",
		Date:                 first.Date,
		StartDate:            first.StartDate,
		EndDate:              first.EndDate,
		ConcertgebouwEventID: 222333,
	}
	require.NoError(t, db.InsertConcert(ctx, second))
	event := seedEvent(t, db)

	require.NoError(t, res.LinkConcertAndEvent(ctx, first.ID, event.ID))
	require.NoError(t, res.LinkConcertAndEvent(ctx, second.ID, event.ID))

	gotFirst, err := db.GetConcertByID(ctx, first.ID)
	require.NoError(t, err)
	gotSecond, err := db.GetConcertByID(ctx, second.ID)
	require.NoError(t, err)
	gotEvent, err := db.GetEventByID(ctx, event.ID)
	require.NoError(t, err)

	assert.Empty(t, gotFirst.EventID, "replaced concert must no longer claim the event")
	assert.Equal(t, event.ID, gotSecond.EventID)
	assert.Equal(t, second.ID, gotEvent.ConcertID)
}

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...string) {
	r.keys = append(r.keys, keys...)
}

func TestRelinkInvalidatesEverySideItTouches(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	invalidator := &recordingInvalidator{}
	res.Cache = invalidator

	concert := seedConcert(t, db)
	first := seedEvent(t, db)
	second := seedEvent(t, db)

	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, first.ID))
	invalidator.keys = nil

	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, second.ID))

	assert.ElementsMatch(t, []string{
		"event:" + first.ID,
		"concert:" + concert.ID,
		"event:" + second.ID,
	}, invalidator.keys)
}

func TestLinkConcertToMissingEvent(t *testing.T) {
	db, res := setupResolver(t)
	concert := seedConcert(t, db)

	err := res.LinkConcertAndEvent(context.Background(), concert.ID, "no-such-event")

	var dangling *store.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "event", dangling.Target)

	got, getErr := db.GetConcertByID(context.Background(), concert.ID)
	require.NoError(t, getErr)
	assert.Empty(t, got.EventID)
}

func TestUnlinkConcertAndEvent(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	concert := seedConcert(t, db)
	event := seedEvent(t, db)
	require.NoError(t, res.LinkConcertAndEvent(ctx, concert.ID, event.ID))

	require.NoError(t, res.UnlinkConcertAndEvent(ctx, concert.ID))

	gotConcert, err := db.GetConcertByID(ctx, concert.ID)
	require.NoError(t, err)
	gotEvent, err := db.GetEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, gotConcert.EventID)
	assert.Empty(t, gotEvent.ConcertID)

	// Unlinking an unlinked concert is a no-op.
	require.NoError(t, res.UnlinkConcertAndEvent(ctx, concert.ID))
}

func TestNewsCanReferenceConcertAndEventIndependently(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	concert := seedConcert(t, db)
	event := seedEvent(t, db)
	news := &models.News{
		ID:    uuid.NewString(),
		Title: "Wandeling Herman",
		Date:  time.Date(2020, 7, 28, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.InsertNews(ctx, news))

	require.NoError(t, res.LinkNewsToConcert(ctx, news.ID, concert.ID))
	require.NoError(t, res.LinkNewsToEvent(ctx, news.ID, event.ID))

	got, err := db.GetNewsByID(ctx, news.ID)
	require.NoError(t, err)
	assert.Equal(t, concert.ID, got.ConcertID)
	assert.Equal(t, event.ID, got.EventID)

	// Clearing one reference leaves the other in place.
	require.NoError(t, res.ClearNewsConcert(ctx, news.ID))
	got, err = db.GetNewsByID(ctx, news.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ConcertID)
	assert.Equal(t, event.ID, got.EventID)
}

func TestLinkNewsToMissingConcert(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	news := &models.News{ID: uuid.NewString(), Title: "Losse mededeling", Date: time.Now().UTC()}
	require.NoError(t, db.InsertNews(ctx, news))

	err := res.LinkNewsToConcert(ctx, news.ID, "missing")

	var dangling *store.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "concert", dangling.Target)
}

func TestLinkTicketCopiesEventDate(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	date := time.Date(2020, 12, 24, 20, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertConcertgebouwEvent(ctx, &models.ConcertgebouwEvent{ID: 42, Date: date}))
	otherDate := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertConcertgebouwEvent(ctx, &models.ConcertgebouwEvent{ID: 7, Date: otherDate}))

	ticket := &models.Ticket{
		ID:        uuid.NewString(),
		Barcode:   "8517236",
		EventID:   7,
		EventDate: otherDate,
	}
	require.NoError(t, db.InsertTicket(ctx, ticket))

	require.NoError(t, res.LinkTicketToEvent(ctx, ticket.ID, 42))

	got, err := db.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.EventID)
	assert.True(t, got.EventDate.Equal(date))
}

func TestLinkTicketToMissingEvent(t *testing.T) {
	db, res := setupResolver(t)
	ctx := context.Background()

	date := time.Date(2020, 12, 24, 20, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertConcertgebouwEvent(ctx, &models.ConcertgebouwEvent{ID: 1, Date: date}))
	ticket := &models.Ticket{ID: uuid.NewString(), Barcode: "123", EventID: 1, EventDate: date}
	require.NoError(t, db.InsertTicket(ctx, ticket))

	err := res.LinkTicketToEvent(ctx, ticket.ID, 999)

	var dangling *store.DanglingReferenceError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "999", dangling.TargetID)
}

func TestClearTicketEventIsRejected(t *testing.T) {
	_, res := setupResolver(t)

	err := res.ClearTicketEvent(context.Background(), "any")

	var violation *store.InvariantViolationError
	require.ErrorAs(t, err, &violation)
}
