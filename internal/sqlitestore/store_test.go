package sqlitestore

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hray3182/gabay/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "gabay.db"),
		BusyTimeout: time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newReminder(owner, msg string, at time.Time) *models.Reminder {
	return &models.Reminder{OwnerID: owner, Message: msg, TriggerTime: at}
}

func TestCreateAssignsDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := newReminder("1", "drink water", t0.In(time.FixedZone("UTC+8", 8*3600)))
	r.Status = models.StatusCompleted
	require.NoError(t, s.Create(ctx, r))

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, models.FrequencyOnce, r.Frequency)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := s.List(ctx, models.ReminderFilter{OwnerID: "1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
	assert.True(t, t0.Equal(got[0].TriggerTime))
	assert.Equal(t, time.UTC, got[0].TriggerTime.Location())
	assert.Nil(t, got[0].IntervalSeconds)
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Create(ctx, newReminder("1", "", t0))
	assert.True(t, models.IsValidation(err))

	err = s.Create(ctx, newReminder("1", "no time", time.Time{}))
	assert.True(t, models.IsValidation(err))

	all, err := s.List(ctx, models.ReminderFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListFiltersAndDue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	past := newReminder("1", "past", t0.Add(-time.Minute))
	exact := newReminder("1", "exact", t0)
	future := newReminder("1", "future", t0.Add(time.Minute))
	other := newReminder("2", "other owner", t0.Add(-time.Hour))
	for _, r := range []*models.Reminder{future, past, exact, other} {
		require.NoError(t, s.Create(ctx, r))
	}

	due, err := s.ListDue(ctx, t0)
	require.NoError(t, err)
	var msgs []string
	for _, r := range due {
		msgs = append(msgs, r.Message)
	}
	assert.Equal(t, []string{"other owner", "past", "exact"}, msgs)

	ok, err := s.CompareAndSet(ctx, past.ID, models.ExpectStatus(models.StatusPending), models.ReminderPatch{Status: models.Ptr(models.StatusCompleted)})
	require.NoError(t, err)
	require.True(t, ok)

	due, err = s.ListDue(ctx, t0)
	require.NoError(t, err)
	assert.Len(t, due, 2, "completed reminders are never due")

	pending, err := s.List(ctx, models.ReminderFilter{OwnerID: "1", Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	completed, err := s.List(ctx, models.ReminderFilter{Status: models.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "past", completed[0].Message)
}

func TestCompareAndSetSingleWinner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := newReminder("1", "race", t0)
	require.NoError(t, s.Create(ctx, r))

	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSet(ctx, r.ID, models.ExpectStatus(models.StatusPending), models.ReminderPatch{Status: models.Ptr(models.StatusCompleted)})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestCompareAndSetReschedule(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := newReminder("1", "stand up", t0)
	r.IntervalSeconds = models.Ptr(60)
	r.RemainingCount = models.Ptr(4)
	require.NoError(t, s.Create(ctx, r))

	next := t0.Add(time.Minute)
	ok, err := s.CompareAndSet(ctx, r.ID, models.ExpectStatus(models.StatusPending), models.ReminderPatch{TriggerTime: &next, RemainingCount: models.Ptr(3)})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.List(ctx, models.ReminderFilter{OwnerID: "1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusPending, got[0].Status)
	assert.True(t, next.Equal(got[0].TriggerTime))
	assert.Equal(t, 3, *got[0].RemainingCount)
	assert.Equal(t, 60, *got[0].IntervalSeconds)

	ok, err = s.CompareAndSet(ctx, "missing", models.ExpectStatus(models.StatusPending), models.ReminderPatch{Status: models.Ptr(models.StatusCompleted)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompareAndSetPinsOccurrence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := newReminder("1", "hourly", t0)
	r.IntervalSeconds = models.Ptr(3600)
	require.NoError(t, s.Create(ctx, r))

	expected := models.Expected{Status: models.StatusPending, TriggerTime: t0}
	next := t0.Add(time.Hour)
	patch := models.ReminderPatch{TriggerTime: &next}

	ok, err := s.CompareAndSet(ctx, r.ID, expected, patch)
	require.NoError(t, err)
	assert.True(t, ok)

	// Still pending, but the occurrence at t0 has been claimed
	ok, err = s.CompareAndSet(ctx, r.ID, expected, patch)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndSet(ctx, r.ID, models.Expected{Status: models.StatusPending, TriggerTime: next}, models.ReminderPatch{Status: models.Ptr(models.StatusCompleted)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteMatching(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newReminder("1", "Buy milk", t0)))
	require.NoError(t, s.Create(ctx, newReminder("1", "buy MILK and eggs", t0)))
	require.NoError(t, s.Create(ctx, newReminder("1", "call bank", t0)))
	require.NoError(t, s.Create(ctx, newReminder("2", "buy milk", t0)))

	n, err := s.DeleteMatching(ctx, "1", "milk")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := s.List(ctx, models.ReminderFilter{OwnerID: "1"})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "call bank", left[0].Message)

	others, err := s.List(ctx, models.ReminderFilter{OwnerID: "2"})
	require.NoError(t, err)
	assert.Len(t, others, 1)

	n, err = s.DeleteMatching(ctx, "1", "   ")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := newReminder("1", "draft", t0)
	require.NoError(t, s.Create(ctx, r))

	require.NoError(t, s.Update(ctx, r.ID, models.ReminderPatch{
		Message:   models.Ptr("final"),
		Frequency: models.Ptr(models.FrequencyDaily),
		Recipient: models.Ptr("alice"),
	}))
	require.NoError(t, s.Update(ctx, "does-not-exist", models.ReminderPatch{Message: models.Ptr("x")}))

	got, err := s.List(ctx, models.ReminderFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "final", got[0].Message)
	assert.Equal(t, models.FrequencyDaily, got[0].Frequency)
	assert.Equal(t, "alice", got[0].Recipient)

	err = s.Update(ctx, r.ID, models.ReminderPatch{RemainingCount: models.Ptr(-2)})
	assert.True(t, models.IsValidation(err))
}

func TestOwnersAndContacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.TouchUser(ctx, "10", "ann")
	require.NoError(t, err)
	u, err := s.TouchUser(ctx, "10", "annie")
	require.NoError(t, err)
	assert.Equal(t, "annie", u.Name)
	_, err = s.TouchUser(ctx, "20", "ben")
	require.NoError(t, err)

	owners, err := s.ListKnownOwners(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10", "20"}, owners)

	require.NoError(t, s.SaveContact(ctx, "10", "  Mom ", "555"))
	channel, ok, err := s.ResolveRecipient(ctx, "10", "MOM")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "555", channel)

	_, ok, err = s.ResolveRecipient(ctx, "20", "mom")
	require.NoError(t, err)
	assert.False(t, ok, "contacts are per owner")

	require.NoError(t, s.SaveContact(ctx, "10", "mom", "777"))
	contacts, err := s.ListContacts(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, []models.Contact{{OwnerID: "10", Name: "mom", ChannelID: "777"}}, contacts)

	assert.True(t, models.IsValidation(s.SaveContact(ctx, "10", "", "1")))
}

func TestOpenEnablesWAL(t *testing.T) {
	s := openTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenWarnsWhenWALUnavailable(t *testing.T) {
	var buf bytes.Buffer
	s, err := Open(context.Background(), Config{Path: ":memory:"}, zerolog.New(&buf))
	require.NoError(t, err)
	defer s.Close()

	assert.Contains(t, buf.String(), "sqlite is not in WAL mode")
	assert.Contains(t, buf.String(), `"journal_mode":"memory"`)
}
