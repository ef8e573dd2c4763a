package middleware

import (
	"canvas-studio/handlers/auth"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthJWT(t *testing.T) {
	auth.InitAuth("middleware-secret")
	token, err := auth.CreateJWT("sess-42")
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	handler := AuthJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	testCases := []struct {
		name       string
		header     string
		wantStatus int
		wantID     string
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent, "sess-42"},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent, "sess-42"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if seen != tc.wantID {
				t.Errorf("session id = %q, want %q", seen, tc.wantID)
			}
		})
	}
}
