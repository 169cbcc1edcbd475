package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterRecords(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		expectedBytes  int
	}{
		{
			name: "Explicit Status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("missing"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBytes:  7,
		},
		{
			name: "Implicit 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			expectedStatus: http.StatusOK,
			expectedBytes:  2,
		},
		{
			name: "Repeated WriteHeader Keeps First",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			wrapped := wrapResponseWriter(rr)
			tt.handler(wrapped, httptest.NewRequest(http.MethodGet, "/", nil))

			if wrapped.Status() != tt.expectedStatus {
				t.Errorf("status = %d, want %d", wrapped.Status(), tt.expectedStatus)
			}
			if wrapped.bytes != tt.expectedBytes {
				t.Errorf("bytes = %d, want %d", wrapped.bytes, tt.expectedBytes)
			}
			if rr.Code != tt.expectedStatus {
				t.Errorf("underlying status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallets", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
	if rr.Body.String() != "short and stout" {
		t.Errorf("body = %q", rr.Body.String())
	}
}
