package testutil

import (
	"bytes"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/mbolis/quick-poll/config"
	"github.com/mbolis/quick-poll/database"
	"github.com/mbolis/quick-poll/model"
)

// TestSecret signs session tokens in tests.
const TestSecret = "test-secret"

// TestConfig returns a configuration pointing at a fresh SQLite file.
func TestConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Addr:           "127.0.0.1:0",
		DBDriver:       config.DriverSQLite,
		DBUrl:          filepath.Join(t.TempDir(), "test.sqlite"),
		TokenSecret:    TestSecret,
		FrontendURL:    "http://localhost:5173",
		InsecureCookie: true,
	}
}

// OpenTestDB opens a migrated, empty SQLite database that is closed when the
// test ends.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(TestConfig(t))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// CreateTestUser inserts a user and returns its ID
func CreateTestUser(t *testing.T, db *sql.DB, name, nationalID string, role model.Role) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO app_user (name, national_id, role) VALUES ($1, $2, $3)
		RETURNING id`,
		name, nationalID, string(role),
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return id
}

// CreateTestPoll inserts a poll with the given options and returns the poll
// ID followed by the option IDs, in order.
func CreateTestPoll(t *testing.T, db *sql.DB, title string, pollType model.PollType, options ...string) (int64, []int64) {
	t.Helper()

	var pollID int64
	err := db.QueryRow(`
		INSERT INTO poll (title, type) VALUES ($1, $2)
		RETURNING id`,
		title, string(pollType),
	).Scan(&pollID)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	optionIDs := make([]int64, len(options))
	for i, o := range options {
		err = db.QueryRow(`
			INSERT INTO poll_option (poll_id, title) VALUES ($1, $2)
			RETURNING id`,
			pollID, o,
		).Scan(&optionIDs[i])
		if err != nil {
			t.Fatalf("Failed to create test option: %v", err)
		}
	}

	return pollID, optionIDs
}

// CreateTestChoiceVote records a choice vote directly and returns its ID
func CreateTestChoiceVote(t *testing.T, db *sql.DB, userID, pollID, optionID int64) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO choice_vote (user_id, poll_id, poll_option_id) VALUES ($1, $2, $3)
		RETURNING id`,
		userID, pollID, optionID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	return id
}

// CountRows returns the number of rows in table matching the optional where clause
func CountRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// MakeRequest creates an HTTP test request with a JSON body
func MakeRequest(method, path string, body any, cookies ...*http.Cookie) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided value
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
