package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	carserrors "carrental/internal/cars/errors"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockCarService struct {
	listFunc    func(ctx context.Context, category string) ([]*model.Car, error)
	getByIDFunc func(ctx context.Context, id string) (*model.Car, error)
	releaseFunc func(ctx context.Context, id string) (*model.Car, error)
}

func (m *mockCarService) List(ctx context.Context, category string) ([]*model.Car, error) {
	return m.listFunc(ctx, category)
}

func (m *mockCarService) GetByID(ctx context.Context, id string) (*model.Car, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockCarService) Release(ctx context.Context, id string) (*model.Car, error) {
	return m.releaseFunc(ctx, id)
}

func serve(svc *mockCarService, method, url string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewCarHandler(svc, logger.Discard()).RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, url, nil))
	return rec
}

func TestCarHandler_List(t *testing.T) {
	var gotCategory string
	svc := &mockCarService{listFunc: func(_ context.Context, category string) ([]*model.Car, error) {
		gotCategory = category
		return []*model.Car{{ID: "c1", Category: category}}, nil
	}}

	rec := serve(svc, http.MethodGet, "/api/v1/cars?category=SUV")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotCategory != "SUV" {
		t.Errorf("category = %q, want SUV", gotCategory)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Count != 1 {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCarHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		url        string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown car", http.MethodGet, "/api/v1/cars/id/x", carserrors.ErrNotFound, http.StatusNotFound, apperrors.CodeNotFound},
		{"store down", http.MethodGet, "/api/v1/cars/id/x", errors.New("no reachable servers"), http.StatusServiceUnavailable, apperrors.CodeTransientStore},
		{"release unknown", http.MethodPost, "/api/v1/cars/id/x/release", carserrors.ErrNotFound, http.StatusNotFound, apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fail := func(context.Context, string) (*model.Car, error) { return nil, tt.err }
			rec := serve(&mockCarService{getByIDFunc: fail, releaseFunc: fail}, tt.method, tt.url)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp httputil.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestCarHandler_Release(t *testing.T) {
	var released string
	svc := &mockCarService{releaseFunc: func(_ context.Context, id string) (*model.Car, error) {
		released = id
		return &model.Car{ID: id, Availability: model.AvailabilityFree}, nil
	}}

	rec := serve(svc, http.MethodPost, "/api/v1/cars/id/car-9/release")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if released != "car-9" {
		t.Errorf("released = %q", released)
	}
}
