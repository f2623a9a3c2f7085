package faqcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ err error }

func (s failingStore) Get(ctx context.Context, orgID uuid.UUID, fp string) (*domain.CacheEntry, error) {
	return nil, s.err
}

func (s failingStore) Set(ctx context.Context, entry *domain.CacheEntry) error {
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCache_PutAndLookup(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour, discardLogger())
	ctx := context.Background()
	orgID := uuid.New()
	answer := "Nuestros horarios son de lunes a viernes de 9:00 a 18:00 horas."

	stored, err := c.Put(ctx, orgID, "¿Cuál es el horario?", answer)
	require.NoError(t, err)
	assert.True(t, stored)

	e := c.Lookup(ctx, orgID, "  ¿CUÁL es el   horario? ")
	require.NotNil(t, e)
	assert.Equal(t, answer, e.Answer)
	assert.Equal(t, time.Hour, e.TTL)
	assert.Equal(t, "¿cuál es el horario?", e.Question)
}

func TestCache_PutRejectsInadmissibleAnswers(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour, discardLogger())
	ctx := context.Background()
	orgID := uuid.New()

	for _, answer := range []string{"Sí", "Error en el procesamiento de tu solicitud"} {
		stored, err := c.Put(ctx, orgID, "pregunta", answer)
		require.NoError(t, err)
		assert.False(t, stored, answer)
	}
	assert.Nil(t, c.Lookup(ctx, orgID, "pregunta"))

	stored, err := c.Put(ctx, orgID, "   ", "Nuestros horarios son de lunes a viernes.")
	require.NoError(t, err)
	assert.False(t, stored, "blank questions are never cached")
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, time.Minute, discardLogger())
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	store.now = func() time.Time { return now }
	ctx := context.Background()
	orgID := uuid.New()

	_, err := c.Put(ctx, orgID, "pregunta", "Una respuesta suficientemente larga.")
	require.NoError(t, err)
	require.NotNil(t, c.Lookup(ctx, orgID, "pregunta"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Lookup(ctx, orgID, "pregunta"))
}

func TestCache_StoreFailureDegradesToMiss(t *testing.T) {
	c := New(failingStore{err: errors.New("redis down")}, time.Hour, discardLogger())
	ctx := context.Background()

	assert.Nil(t, c.Lookup(ctx, uuid.New(), "pregunta"))

	stored, err := c.Put(ctx, uuid.New(), "pregunta", "Una respuesta suficientemente larga.")
	assert.Error(t, err)
	assert.False(t, stored)
}

func TestNew_DefaultTTL(t *testing.T) {
	c := New(NewMemoryStore(), 0, discardLogger())
	assert.Equal(t, DefaultTTL, c.ttl)
}
