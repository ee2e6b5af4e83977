package poi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/models"
)

func newTestRouter(svc Service, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, "en", zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	r.PATCH("/pois/:id", h.UpdatePOI)
	r.DELETE("/pois/:id", h.DeletePOI)
	r.POST("/pois/:id/translations", h.AddTranslations)
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

func TestHandler_OnlyOperatorWrites(t *testing.T) {
	operator := uuid.New()
	p := &models.PointOfInterest{ID: uuid.New(), OperatorID: operator, Name: "Torre de Belém"}
	path := "/pois/" + p.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"update", http.MethodPatch, path, map[string]string{"name": "Belém Tower"}},
		{"delete", http.MethodDelete, path, nil},
		{"add translations", http.MethodPost, path + "/translations", map[string]any{"pt": map[string]string{"name": "Torre"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPOIRepository)
			repo.On("GetPOI", mock.Anything, p.ID).Return(p, nil)
			r := newTestRouter(NewServiceImpl(repo, 10, zap.NewNop()), uuid.New())

			w := doJSON(r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
			repo.AssertNotCalled(t, "UpdatePOI", mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "DeletePOI", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "AddTranslations", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("operator may update", func(t *testing.T) {
		repo := new(MockPOIRepository)
		name := "Belém Tower"
		repo.On("GetPOI", mock.Anything, p.ID).Return(p, nil)
		repo.On("UpdatePOI", mock.Anything, p.ID, models.POIPatch{Name: &name}).
			Return(&models.PointOfInterest{ID: p.ID, OperatorID: operator, Name: name}, nil)
		r := newTestRouter(NewServiceImpl(repo, 10, zap.NewNop()), operator)

		w := doJSON(r, http.MethodPatch, path, map[string]string{"name": name})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		repo.AssertExpectations(t)
	})

	t.Run("operator may delete", func(t *testing.T) {
		repo := new(MockPOIRepository)
		repo.On("GetPOI", mock.Anything, p.ID).Return(p, nil)
		repo.On("DeletePOI", mock.Anything, p.ID).Return(nil)
		r := newTestRouter(NewServiceImpl(repo, 10, zap.NewNop()), operator)

		assert.Equal(t, http.StatusNoContent, doJSON(r, http.MethodDelete, path, nil).Code)
		repo.AssertExpectations(t)
	})

	t.Run("unknown poi", func(t *testing.T) {
		repo := new(MockPOIRepository)
		missing := uuid.New()
		repo.On("GetPOI", mock.Anything, missing).Return(nil, fmt.Errorf("poi: %w", models.ErrNotFound))
		r := newTestRouter(NewServiceImpl(repo, 10, zap.NewNop()), operator)

		assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/pois/"+missing.String(), nil).Code)
	})
}
