package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hray3182/gabay/internal/bot"
	"github.com/hray3182/gabay/internal/config"
	"github.com/hray3182/gabay/internal/dispatcher"
	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "nested", "gabay.db"),
	}
	ctx := context.Background()

	st, err := openStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	rec := &models.Reminder{OwnerID: "1", Message: "ping", TriggerTime: time.Now().Add(-time.Minute)}
	require.NoError(t, st.Create(ctx, rec))

	due, err := st.ListDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, rec.ID, due[0].ID)
}

func TestTickWithLogDeliverer(t *testing.T) {
	cfg := &config.Config{
		StoreDriver:     config.DriverSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "gabay.db"),
		DispatchWorkers: 1,
		DispatchQueue:   4,
		DispatchTimeout: time.Second,
	}
	ctx := context.Background()

	var buf bytes.Buffer
	log := zerolog.New(zerolog.SyncWriter(&buf))

	st, err := openStore(ctx, cfg, log)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Create(ctx, &models.Reminder{OwnerID: "1", Message: "stand up", TriggerTime: time.Now().Add(-time.Second)}))

	deliverer, tg, err := newDeliverer(cfg, log)
	require.NoError(t, err)
	assert.Nil(t, tg)

	pool := newPool(cfg, log)
	pool.Start(ctx)
	report, err := scheduler.NewPoller(st, newDispatcher(cfg, st, deliverer, log), pool, log).Tick(ctx)
	pool.Stop()

	require.NoError(t, err)
	assert.Equal(t, 1, report.Claimed)
	assert.Contains(t, buf.String(), dispatcher.ReminderPrefix+"stand up")

	pending, err := st.List(ctx, models.ReminderFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTelegramClientsAreBounded(t *testing.T) {
	assert.Equal(t, 5*time.Second, sendClient(5*time.Second).Timeout)
	assert.Equal(t, defaultSendTimeout, sendClient(0).Timeout)

	// Long polls must finish before the client gives up on them
	assert.Greater(t, updatesClient().Timeout, bot.UpdateTimeout*time.Second)
}
