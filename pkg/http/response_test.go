package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "carrental/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  any
	}{
		{
			name:       "validation error keeps field detail",
			err:        apperrors.Validation("renter.phone", "invalid phone"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.CodeValidation,
			wantField:  "renter.phone",
		},
		{
			name:       "car unavailable",
			err:        apperrors.CarUnavailable("car-1"),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeCarUnavailable,
		},
		{
			name:       "transient store",
			err:        apperrors.TransientStore(errors.New("boom")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.CodeTransientStore,
		},
		{
			name:       "plain error becomes internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("WriteError() error = %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
			if tt.wantField != nil && resp.Details["field"] != tt.wantField {
				t.Errorf("details.field = %v, want %v", resp.Details["field"], tt.wantField)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-05-01", want: "2024-05-01T00:00:00Z"},
		{in: " 2024-05-01 ", want: "2024-05-01T00:00:00Z"},
		{in: "2024-05-01T10:30:00+02:00", want: "2024-05-01T08:30:00Z"},
		{in: "01/05/2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.in, err)
			}
			if got.Format("2006-01-02T15:04:05Z07:00") != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02T15:04:05Z07:00"), tt.want)
			}
		})
	}
}
