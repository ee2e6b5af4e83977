package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

func newTestRouter(svc Service, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	r.POST("/pois/:id/schedules", h.CreateSchedule)
	r.PATCH("/schedules/:scheduleID", h.UpdateSchedule)
	r.DELETE("/schedules/:scheduleID", h.DeleteSchedule)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf []byte
	if body != nil {
		buf, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_OnlyOperatorManagesSchedules(t *testing.T) {
	operator, poiID, scheduleID := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	window := map[string]any{"start": start, "end": start.Add(time.Hour), "total_capacity": 20}

	newRepo := func() *MockScheduleRepository {
		repo := new(MockScheduleRepository)
		repo.On("POIOperator", mock.Anything, poiID).Return(operator, nil)
		repo.On("ScheduleOperator", mock.Anything, scheduleID).Return(operator, nil)
		return repo
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"create", http.MethodPost, "/pois/" + poiID.String() + "/schedules", window},
		{"update", http.MethodPatch, "/schedules/" + scheduleID.String(), map[string]any{"is_active": false}},
		{"delete", http.MethodDelete, "/schedules/" + scheduleID.String(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name+" by another user", func(t *testing.T) {
			repo := newRepo()
			r := newTestRouter(NewServiceImpl(repo, zap.NewNop()), uuid.New())

			w := doJSON(r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
			repo.AssertNotCalled(t, "CreateSchedule", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "UpdateSchedule", mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "DeleteSchedule", mock.Anything, mock.Anything)
		})
	}

	t.Run("operator creates", func(t *testing.T) {
		repo := newRepo()
		repo.On("CreateSchedule", mock.Anything, mock.MatchedBy(func(p models.CreateScheduleParams) bool {
			return p.POIID == poiID && p.TotalCapacity == 20
		})).Return(&models.AttractionSchedule{ID: scheduleID, POIID: poiID, TotalCapacity: 20, RemainingCapacity: 20}, nil)
		r := newTestRouter(NewServiceImpl(repo, zap.NewNop()), operator)

		w := doJSON(r, http.MethodPost, "/pois/"+poiID.String()+"/schedules", window)
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		repo.AssertExpectations(t)
	})

	t.Run("operator deletes", func(t *testing.T) {
		repo := newRepo()
		repo.On("DeleteSchedule", mock.Anything, scheduleID).Return(nil)
		r := newTestRouter(NewServiceImpl(repo, zap.NewNop()), operator)

		assert.Equal(t, http.StatusNoContent, doJSON(r, http.MethodDelete, "/schedules/"+scheduleID.String(), nil).Code)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		repo := new(MockScheduleRepository)
		missing := uuid.New()
		repo.On("ScheduleOperator", mock.Anything, missing).Return(uuid.Nil, fmt.Errorf("schedule operator: %w", models.ErrNotFound))
		r := newTestRouter(NewServiceImpl(repo, zap.NewNop()), operator)

		assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/schedules/"+missing.String(), nil).Code)
	})
}
