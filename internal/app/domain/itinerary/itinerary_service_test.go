package itinerary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

type memRepo struct {
	mu          sync.Mutex
	itineraries map[uuid.UUID]models.Itinerary
	items       map[uuid.UUID]models.ItineraryItem
	dayLocks    int
}

func newMemRepo() *memRepo {
	return &memRepo{
		itineraries: make(map[uuid.UUID]models.Itinerary),
		items:       make(map[uuid.UUID]models.ItineraryItem),
	}
}

func (m *memRepo) CreateItinerary(_ context.Context, userID uuid.UUID, name string) (*models.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	it := models.Itinerary{ID: uuid.New(), UserID: userID, Name: name, Items: []models.ItineraryItem{}, CreatedAt: now, UpdatedAt: now}
	m.itineraries[it.ID] = it
	return &it, nil
}

func (m *memRepo) GetItinerary(ctx context.Context, id uuid.UUID) (*models.Itinerary, error) {
	m.mu.Lock()
	it, ok := m.itineraries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("itinerary: %w", models.ErrNotFound)
	}
	items, _ := m.ListItems(ctx, id)
	it.Items = items
	return &it, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Itinerary, 0)
	for _, it := range m.itineraries {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memRepo) RenameItinerary(_ context.Context, id uuid.UUID, name string) (*models.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itineraries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	it.Name = name
	m.itineraries[id] = it
	return &it, nil
}

func (m *memRepo) DeleteItinerary(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.itineraries[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.itineraries, id)
	return nil
}

func (m *memRepo) ItineraryOwner(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itineraries[id]
	if !ok {
		return uuid.Nil, fmt.Errorf("itinerary owner: %w", models.ErrNotFound)
	}
	return it.UserID, nil
}

func (m *memRepo) LockDay(context.Context, uuid.UUID, models.Date) error {
	m.mu.Lock()
	m.dayLocks++
	m.mu.Unlock()
	return nil
}

func (m *memRepo) ItemsForDay(_ context.Context, itineraryID uuid.UUID, date models.Date) ([]models.ItineraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ItineraryItem, 0)
	for _, item := range m.items {
		if item.ItineraryID == itineraryID && item.Date.Equal(date.Time) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memRepo) NextOrder(ctx context.Context, itineraryID uuid.UUID, date models.Date) (int, error) {
	items, _ := m.ItemsForDay(ctx, itineraryID, date)
	next := 0
	for _, item := range items {
		if item.Order >= next {
			next = item.Order + 1
		}
	}
	return next, nil
}

func (m *memRepo) InsertItem(_ context.Context, item models.ItineraryItem) (*models.ItineraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.itineraries[item.ItineraryID]; !ok {
		return nil, fmt.Errorf("insert itinerary item: %w", models.ErrNotFound)
	}
	for _, other := range m.items {
		if other.ItineraryID == item.ItineraryID && other.Date.Equal(item.Date.Time) && other.Order == item.Order {
			return nil, fmt.Errorf("insert itinerary item: %w", models.ErrConflict)
		}
	}
	item.ID = uuid.New()
	m.items[item.ID] = item
	return &item, nil
}

func (m *memRepo) GetItem(_ context.Context, itemID uuid.UUID) (*models.ItineraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &item, nil
}

func (m *memRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return models.ErrNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *memRepo) ListItems(_ context.Context, itineraryID uuid.UUID) ([]models.ItineraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ItineraryItem, 0)
	for _, item := range m.items {
		if item.ItineraryID == itineraryID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

// serialTx stands in for the advisory day lock: transactions run one at a time.
type serialTx struct{ mu sync.Mutex }

func (t *serialTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// recordingReleaser notes each release together with whether the items were
// still present at that moment.
type recordingReleaser struct {
	repo    *memRepo
	scopes  []models.ItemScope
	itemsAt []int
	err     error
}

func (r *recordingReleaser) ReleaseItems(ctx context.Context, scope models.ItemScope) (int, error) {
	r.scopes = append(r.scopes, scope)
	items, _ := r.repo.ListItems(ctx, scope.ItineraryID)
	r.itemsAt = append(r.itemsAt, len(items))
	return 0, r.err
}

func newPlanner(t *testing.T) (*ServiceImpl, *memRepo, uuid.UUID) {
	t.Helper()
	repo := newMemRepo()
	svc := NewServiceImpl(repo, &serialTx{}, nil, zap.NewNop())
	it, err := svc.CreateItinerary(context.Background(), uuid.New(), "Lisbon weekend")
	require.NoError(t, err)
	return svc, repo, it.ID
}

var july1 = models.NewDate(2026, time.July, 1)

func slot(itineraryID uuid.UUID, date models.Date, startH, startM, endH, endM int) models.AddItemParams {
	return models.AddItemParams{
		ItineraryID: itineraryID,
		POIID:       uuid.New(),
		Date:        date,
		StartTime:   models.Clock(startH, startM),
		EndTime:     models.Clock(endH, endM),
	}
}

func TestFindConflict(t *testing.T) {
	existing := []models.ItineraryItem{
		{StartTime: models.Clock(10, 0), EndTime: models.Clock(11, 0)},
	}
	tests := []struct {
		name       string
		start, end models.TimeOfDay
		want       bool
	}{
		{"partial overlap", models.Clock(10, 30), models.Clock(11, 30), true},
		{"contained", models.Clock(10, 15), models.Clock(10, 45), true},
		{"containing", models.Clock(9, 0), models.Clock(12, 0), true},
		{"identical", models.Clock(10, 0), models.Clock(11, 0), true},
		{"touching after", models.Clock(11, 0), models.Clock(12, 0), false},
		{"touching before", models.Clock(9, 0), models.Clock(10, 0), false},
		{"disjoint", models.Clock(14, 0), models.Clock(15, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := FindConflict(existing, tt.start, tt.end)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddItem_RejectsOverlapAcceptsTouching(t *testing.T) {
	svc, repo, itID := newPlanner(t)
	ctx := context.Background()

	first, err := svc.AddItem(ctx, slot(itID, july1, 10, 0, 11, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, first.Order)

	_, err = svc.AddItem(ctx, slot(itID, july1, 10, 30, 11, 30))
	assert.ErrorIs(t, err, models.ErrTimeOverlap)

	second, err := svc.AddItem(ctx, slot(itID, july1, 11, 0, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Order)

	// same hours on another day do not conflict
	other, err := svc.AddItem(ctx, slot(itID, models.NewDate(2026, time.July, 2), 10, 0, 11, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, other.Order)

	assert.Equal(t, 4, repo.dayLocks)
}

func TestAddItem_Validation(t *testing.T) {
	svc, repo, itID := newPlanner(t)
	negative := -1

	tests := []struct {
		name   string
		params models.AddItemParams
	}{
		{"end before start", slot(itID, july1, 11, 0, 10, 0)},
		{"empty interval", slot(itID, july1, 10, 0, 10, 0)},
		{"missing date", slot(itID, models.Date{}, 10, 0, 11, 0)},
		{"past midnight", models.AddItemParams{ItineraryID: itID, Date: july1, StartTime: models.Clock(23, 0), EndTime: models.Clock(25, 0)}},
		{"negative order", func() models.AddItemParams {
			p := slot(itID, july1, 10, 0, 11, 0)
			p.Order = &negative
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(context.Background(), tt.params)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
	assert.Zero(t, repo.dayLocks)
}

func TestAddItem_ExplicitOrder(t *testing.T) {
	svc, _, itID := newPlanner(t)
	ctx := context.Background()
	five := 5

	p := slot(itID, july1, 9, 0, 10, 0)
	p.Order = &five
	item, err := svc.AddItem(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Order)

	next, err := svc.AddItem(ctx, slot(itID, july1, 10, 0, 11, 0))
	require.NoError(t, err)
	assert.Equal(t, 6, next.Order)

	clash := slot(itID, july1, 14, 0, 15, 0)
	clash.Order = &five
	_, err = svc.AddItem(ctx, clash)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAddItem_UnknownItinerary(t *testing.T) {
	svc, _, _ := newPlanner(t)
	_, err := svc.AddItem(context.Background(), slot(uuid.New(), july1, 10, 0, 11, 0))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAddItem_ConcurrentOverlappingAddsOneWins(t *testing.T) {
	svc, repo, itID := newPlanner(t)

	var (
		g        errgroup.Group
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := svc.AddItem(context.Background(), slot(itID, july1, 10, 0, 11, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, models.ErrTimeOverlap):
				rejected++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 19, rejected)

	items, err := repo.ListItems(context.Background(), itID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestValidateItem_DoesNotPersist(t *testing.T) {
	svc, repo, itID := newPlanner(t)
	ctx := context.Background()

	require.NoError(t, svc.ValidateItem(ctx, slot(itID, july1, 10, 0, 11, 0)))
	items, _ := repo.ListItems(ctx, itID)
	assert.Empty(t, items)

	_, err := svc.AddItem(ctx, slot(itID, july1, 10, 0, 11, 0))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ValidateItem(ctx, slot(itID, july1, 10, 59, 11, 30)), models.ErrTimeOverlap)
	assert.NoError(t, svc.ValidateItem(ctx, slot(itID, july1, 11, 0, 11, 30)))
}

func TestValidateItem_UnknownItinerary(t *testing.T) {
	svc, _, _ := newPlanner(t)
	err := svc.ValidateItem(context.Background(), slot(uuid.New(), july1, 10, 0, 11, 0))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAuthorize(t *testing.T) {
	repo := newMemRepo()
	svc := NewServiceImpl(repo, &serialTx{}, nil, zap.NewNop())
	ctx := context.Background()
	owner := uuid.New()
	it, err := svc.CreateItinerary(ctx, owner, "Rome")
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(ctx, it.ID, owner))
	assert.ErrorIs(t, svc.Authorize(ctx, it.ID, uuid.New()), models.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, uuid.New(), owner), models.ErrNotFound)
}

func TestRemoveItem_ReleasesSeatsBeforeDelete(t *testing.T) {
	repo := newMemRepo()
	releaser := &recordingReleaser{repo: repo}
	svc := NewServiceImpl(repo, &serialTx{}, releaser, zap.NewNop())
	ctx := context.Background()
	it, err := svc.CreateItinerary(ctx, uuid.New(), "Madrid")
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, slot(it.ID, july1, 10, 0, 11, 0))
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, it.ID, item.ID))
	require.Len(t, releaser.scopes, 1)
	assert.Equal(t, models.ItemScope{ItineraryID: it.ID, ItemID: item.ID}, releaser.scopes[0])
	assert.Equal(t, []int{1}, releaser.itemsAt)

	// a failed release keeps the item
	other, err := svc.AddItem(ctx, slot(it.ID, july1, 12, 0, 13, 0))
	require.NoError(t, err)
	releaser.err = errors.New("lock timeout")
	require.Error(t, svc.RemoveItem(ctx, it.ID, other.ID))
	_, err = repo.GetItem(ctx, other.ID)
	assert.NoError(t, err)

	// an item of another itinerary is never released
	releaser.err = nil
	assert.ErrorIs(t, svc.RemoveItem(ctx, uuid.New(), other.ID), models.ErrNotFound)
	assert.Len(t, releaser.scopes, 2)
}

func TestDeleteItinerary_ReleasesSeatsBeforeDelete(t *testing.T) {
	repo := newMemRepo()
	releaser := &recordingReleaser{repo: repo}
	svc := NewServiceImpl(repo, &serialTx{}, releaser, zap.NewNop())
	ctx := context.Background()
	it, err := svc.CreateItinerary(ctx, uuid.New(), "Seville")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, slot(it.ID, july1, 10, 0, 11, 0))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, slot(it.ID, july1, 11, 0, 12, 0))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItinerary(ctx, it.ID))
	assert.Equal(t, []models.ItemScope{{ItineraryID: it.ID}}, releaser.scopes)
	assert.Equal(t, []int{2}, releaser.itemsAt)

	releaser.err = errors.New("deadlock detected")
	other, err := svc.CreateItinerary(ctx, uuid.New(), "Cadiz")
	require.NoError(t, err)
	require.Error(t, svc.DeleteItinerary(ctx, other.ID))
	_, err = svc.GetItinerary(ctx, other.ID)
	assert.NoError(t, err)
}

func TestRemoveItem(t *testing.T) {
	svc, _, itID := newPlanner(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, slot(itID, july1, 10, 0, 11, 0))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveItem(ctx, uuid.New(), item.ID), models.ErrNotFound)
	require.NoError(t, svc.RemoveItem(ctx, itID, item.ID))

	// the freed slot can be booked again
	_, err = svc.AddItem(ctx, slot(itID, july1, 10, 30, 11, 0))
	assert.NoError(t, err)
}

func TestListItems_SortedByDateThenOrder(t *testing.T) {
	svc, _, itID := newPlanner(t)
	ctx := context.Background()
	july2 := models.NewDate(2026, time.July, 2)

	_, err := svc.AddItem(ctx, slot(itID, july2, 9, 0, 10, 0))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, slot(itID, july1, 14, 0, 15, 0))
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, slot(itID, july1, 9, 0, 10, 0))
	require.NoError(t, err)

	items, err := svc.ListItems(ctx, itID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, july1, items[0].Date)
	assert.Equal(t, 0, items[0].Order)
	assert.Equal(t, 1, items[1].Order)
	assert.Equal(t, july2, items[2].Date)

	_, err = svc.ListItems(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateAndRenameItinerary(t *testing.T) {
	svc, _, itID := newPlanner(t)
	ctx := context.Background()

	_, err := svc.CreateItinerary(ctx, uuid.New(), "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	renamed, err := svc.RenameItinerary(ctx, itID, " Porto ")
	require.NoError(t, err)
	assert.Equal(t, "Porto", renamed.Name)

	require.NoError(t, svc.DeleteItinerary(ctx, itID))
	_, err = svc.GetItinerary(ctx, itID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
