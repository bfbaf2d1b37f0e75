package usage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"
)

// setupHandlerTest initializes a router, mock service, and handler for testing.
func setupHandlerTest(t *testing.T) (*chi.Mux, *MockService, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	mockService := NewMockService(ctrl)

	handler := NewHandler(mockService)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	return r, mockService, ctrl
}

func TestHandleSummary_Success(t *testing.T) {
	r, mockService, ctrl := setupHandlerTest(t)
	defer ctrl.Finish()

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expected := []*Summary{{Mode: ModeStream, Status: "ok", Count: 3}}

	mockService.EXPECT().
		Summary(gomock.Any(), since).
		Return(expected, nil).
		Times(1)

	req := httptest.NewRequest("GET", "/usage/summary?since=2025-03-01T00:00:00Z", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var respBody summaryResponse
	if err := json.NewDecoder(rr.Body).Decode(&respBody); err != nil {
		t.Fatalf("Could not decode response: %v", err)
	}
	if len(respBody.Summaries) != 1 || respBody.Summaries[0].Count != 3 {
		t.Errorf("Unexpected summary response: %+v", respBody)
	}
}

func TestHandleSummary_InvalidSince(t *testing.T) {
	r, mockService, ctrl := setupHandlerTest(t)
	defer ctrl.Finish()

	mockService.EXPECT().Summary(gomock.Any(), gomock.Any()).Times(0)

	req := httptest.NewRequest("GET", "/usage/summary?since=yesterday", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHandleSummary_ServiceError(t *testing.T) {
	r, mockService, ctrl := setupHandlerTest(t)
	defer ctrl.Finish()

	mockService.EXPECT().
		Summary(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("database is down")).
		Times(1)

	req := httptest.NewRequest("GET", "/usage/summary", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}

	var errBody map[string]string
	json.NewDecoder(rr.Body).Decode(&errBody)
	if errBody["detail"] != "Could not summarize usage" {
		t.Errorf("Expected detail '%s', got '%s'", "Could not summarize usage", errBody["detail"])
	}
}

func TestHandleSummary_FutureSince(t *testing.T) {
	r, mockService, ctrl := setupHandlerTest(t)
	defer ctrl.Finish()

	mockService.EXPECT().Summary(gomock.Any(), gomock.Any()).Times(0)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	req := httptest.NewRequest("GET", "/usage/summary?since="+future, nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}
