package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-poll/service"
)

func TestError_StatusMapping(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"Validation", &service.Error{Kind: service.ErrValidation, Msg: "title is required"}, http.StatusBadRequest, "title is required"},
		{"InvalidPayload", &service.Error{Kind: service.ErrInvalidPayload, Msg: "bad data"}, http.StatusBadRequest, "bad data"},
		{"NotFound", &service.Error{Kind: service.ErrNotFound, Msg: "poll 1 not found"}, http.StatusNotFound, "poll 1 not found"},
		{"DuplicateVote", &service.DuplicateVoteError{UserName: "Alice", PollTitle: "Lunch?"}, http.StatusConflict, `Alice has already voted on poll "Lunch?"`},
		{"Conflict", &service.Error{Kind: service.ErrConflict, Msg: "taken"}, http.StatusConflict, "taken"},
		{"Unauthorized", &service.Error{Kind: service.ErrUnauthorized, Msg: "expired"}, http.StatusUnauthorized, "expired"},
		{"Forbidden", &service.Error{Kind: service.ErrForbidden, Msg: "admins only"}, http.StatusForbidden, "admins only"},
		{"VotingClosed", &service.Error{Kind: service.ErrVotingClosed, Msg: "voting is closed"}, http.StatusForbidden, "voting is closed"},
		{"Storage", errors.Wrap(errors.New("disk I/O error"), "db.insert_poll"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			w := httptest.NewRecorder()

			Error(w, r, "test", tc.err)

			if w.Code != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Expected a JSON response, got %q", ct)
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if body["error"] != tc.message {
				t.Errorf("Expected error %q, got %q", tc.message, body["error"])
			}
		})
	}
}

func TestError_DoesNotLeakStorageErrors(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	w := httptest.NewRecorder()

	Error(w, r, "db.insert_poll", errors.New(`UNIQUE constraint failed: app_user.national_id`))

	if strings.Contains(w.Body.String(), "app_user") {
		t.Errorf("Storage detail leaked to client: %s", w.Body.String())
	}
}
