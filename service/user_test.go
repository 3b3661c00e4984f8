package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/service"
	"github.com/mbolis/quick-poll/testutil"
)

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	users := service.NewUserService(testutil.OpenTestDB(t))

	user, err := users.CreateUser(ctx, " Alice ", "11111111111")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == 0 || user.Name != "Alice" || user.Role != model.RoleOrdinary {
		t.Errorf("Unexpected user: %+v", user)
	}

	_, err = users.CreateUser(ctx, "Alice Again", "11111111111")
	if !errors.Is(err, service.ErrConflict) {
		t.Errorf("Expected ErrConflict for a taken national id, got %v", err)
	}

	testCases := []struct {
		name       string
		userName   string
		nationalID string
	}{
		{"BlankName", " ", "22222222222"},
		{"BlankNationalID", "Bob", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := users.CreateUser(ctx, tc.userName, tc.nationalID)
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestListUsers_WithVotes(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := service.NewUserService(db)

	alice := testutil.CreateTestUser(t, db, "Alice", "11111111111", model.RoleOrdinary)
	bob := testutil.CreateTestUser(t, db, "Bob", "22222222222", model.RoleAdmin)
	lunchID, options := testutil.CreateTestPoll(t, db, "Lunch?", model.PollChoice, "Pizza", "Salad")
	feedbackID, _ := testutil.CreateTestPoll(t, db, "Feedback", model.PollText)
	testutil.CreateTestChoiceVote(t, db, alice, lunchID, options[1])
	_, err := db.Exec(`INSERT INTO text_vote (user_id, poll_id, text) VALUES ($1, $2, $3)`, alice, feedbackID, "Great event")
	if err != nil {
		t.Fatalf("Failed to insert text vote: %v", err)
	}

	list, err := users.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(list))
	}

	a := list[0]
	if a.ID != alice || len(a.ChoiceVotes) != 1 || len(a.TextVotes) != 1 {
		t.Fatalf("Unexpected user detail: %+v", a)
	}
	if cv := a.ChoiceVotes[0]; cv.PollTitle != "Lunch?" || cv.OptionTitle != "Salad" || cv.OptionID != options[1] {
		t.Errorf("Unexpected choice vote: %+v", cv)
	}
	if tv := a.TextVotes[0]; tv.PollTitle != "Feedback" || tv.Text != "Great event" {
		t.Errorf("Unexpected text vote: %+v", tv)
	}

	b := list[1]
	if b.ID != bob || b.Role != model.RoleAdmin || len(b.ChoiceVotes) != 0 || len(b.TextVotes) != 0 {
		t.Errorf("Unexpected user detail: %+v", b)
	}
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := service.NewUserService(db)

	alice := testutil.CreateTestUser(t, db, "Alice", "11111111111", model.RoleOrdinary)
	bob := testutil.CreateTestUser(t, db, "Bob", "22222222222", model.RoleOrdinary)
	pollID, options := testutil.CreateTestPoll(t, db, "Lunch?", model.PollChoice, "Pizza")
	testutil.CreateTestChoiceVote(t, db, bob, pollID, options[0])

	user, err := users.GetUser(ctx, alice)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Name != "Alice" || len(user.ChoiceVotes) != 0 {
		t.Errorf("Expected Alice without votes, got %+v", user)
	}

	user, err = users.GetUser(ctx, bob)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if len(user.ChoiceVotes) != 1 {
		t.Errorf("Expected Bob's vote, got %+v", user.ChoiceVotes)
	}

	if _, err = users.GetUser(ctx, bob+100); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserName(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := service.NewUserService(db)

	alice := testutil.CreateTestUser(t, db, "Alice", "11111111111", model.RoleOrdinary)

	user, err := users.UpdateUserName(ctx, alice, "Alice Liddell")
	if err != nil {
		t.Fatalf("UpdateUserName failed: %v", err)
	}
	if user.Name != "Alice Liddell" || user.NationalID != "11111111111" {
		t.Errorf("Unexpected user: %+v", user)
	}

	if _, err = users.UpdateUserName(ctx, alice, ""); !errors.Is(err, service.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if _, err = users.UpdateUserName(ctx, alice+100, "Nobody"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUser_CascadesVotes(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := service.NewUserService(db)

	alice := testutil.CreateTestUser(t, db, "Alice", "11111111111", model.RoleOrdinary)
	pollID, options := testutil.CreateTestPoll(t, db, "Lunch?", model.PollChoice, "Pizza")
	testutil.CreateTestChoiceVote(t, db, alice, pollID, options[0])

	if err := users.DeleteUser(ctx, alice); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if n := testutil.CountRows(t, db, "choice_vote", ""); n != 0 {
		t.Errorf("Expected votes to be deleted with the user, got %d", n)
	}
	if err := users.DeleteUser(ctx, alice); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSetRole(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	users := service.NewUserService(db)

	alice := testutil.CreateTestUser(t, db, "Alice", "11111111111", model.RoleOrdinary)

	user, err := users.SetRole(ctx, "11111111111", model.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if user.ID != alice || user.Role != model.RoleAdmin {
		t.Errorf("Unexpected user: %+v", user)
	}

	if _, err = users.SetRole(ctx, "11111111111", model.Role("ROOT")); !errors.Is(err, service.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if _, err = users.SetRole(ctx, "99999999999", model.RoleAdmin); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
