package reviews

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

type reviewKey struct{ user, poi uuid.UUID }

// memRepo mirrors the (user_id, poi_id) unique key.
type memRepo struct {
	mu      sync.Mutex
	reviews map[reviewKey]models.Review
	pois    map[uuid.UUID]bool
}

func newMemRepo(pois ...uuid.UUID) *memRepo {
	m := &memRepo{reviews: make(map[reviewKey]models.Review), pois: make(map[uuid.UUID]bool)}
	for _, id := range pois {
		m.pois[id] = true
	}
	return m
}

func (m *memRepo) Upsert(_ context.Context, r models.Review) (*models.Review, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pois[r.POIID] {
		return nil, false, fmt.Errorf("upsert review: %w", models.ErrNotFound)
	}
	key := reviewKey{r.UserID, r.POIID}
	if existing, ok := m.reviews[key]; ok {
		existing.Rating = r.Rating
		existing.Text = r.Text
		m.reviews[key] = existing
		return &existing, false, nil
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.reviews[key] = r
	return &r, true, nil
}

func (m *memRepo) ListByPOI(_ context.Context, poiID uuid.UUID) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Review, 0)
	for _, r := range m.reviews {
		if r.POIID == poiID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) Summary(ctx context.Context, poiID uuid.UUID) (*models.RatingSummary, error) {
	list, _ := m.ListByPOI(ctx, poiID)
	s := &models.RatingSummary{POIID: poiID, ReviewCount: len(list)}
	if len(list) > 0 {
		sum := 0
		for _, r := range list {
			sum += r.Rating
		}
		avg := float64(sum) / float64(len(list))
		s.AvgRating = &avg
	}
	return s, nil
}

func TestSubmit_UpsertOnIdentity(t *testing.T) {
	poiID, userID := uuid.New(), uuid.New()
	repo := newMemRepo(poiID)
	svc := NewServiceImpl(repo, zap.NewNop())
	ctx := context.Background()

	first, created, err := svc.Submit(ctx, userID, poiID, 3, "ok")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.Submit(ctx, userID, poiID, 5, "  better on a second visit ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Rating)
	assert.Equal(t, "better on a second visit", second.Text)

	list, err := svc.ListByPOI(ctx, poiID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmit_RatingBounds(t *testing.T) {
	poiID := uuid.New()
	svc := NewServiceImpl(newMemRepo(poiID), zap.NewNop())

	for _, rating := range []int{0, 6, -1} {
		t.Run(fmt.Sprint(rating), func(t *testing.T) {
			_, _, err := svc.Submit(context.Background(), uuid.New(), poiID, rating, "")
			assert.ErrorIs(t, err, models.ErrInvalidRating)
		})
	}
	for _, rating := range []int{1, 5} {
		_, created, err := svc.Submit(context.Background(), uuid.New(), poiID, rating, "")
		require.NoError(t, err)
		assert.True(t, created)
	}
}

func TestSubmit_UnknownPOI(t *testing.T) {
	svc := NewServiceImpl(newMemRepo(), zap.NewNop())
	_, _, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 4, "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSummary(t *testing.T) {
	poiID := uuid.New()
	svc := NewServiceImpl(newMemRepo(poiID), zap.NewNop())
	ctx := context.Background()

	empty, err := svc.Summary(ctx, poiID)
	require.NoError(t, err)
	assert.Nil(t, empty.AvgRating)
	assert.Zero(t, empty.ReviewCount)

	for _, rating := range []int{4, 5, 3} {
		_, _, err := svc.Submit(ctx, uuid.New(), poiID, rating, "")
		require.NoError(t, err)
	}
	summary, err := svc.Summary(ctx, poiID)
	require.NoError(t, err)
	require.NotNil(t, summary.AvgRating)
	assert.InDelta(t, 4.0, *summary.AvgRating, 1e-9)
	assert.Equal(t, 3, summary.ReviewCount)
}
