package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/routes/middlewares"
	"github.com/mbolis/quick-poll/service"
)

type createPollRequest struct {
	Title   string         `json:"title"`
	Type    model.PollType `json:"type"`
	Options []string       `json:"options"`
}

func CreatePoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createPollRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		poll, err := app.Polls.CreatePoll(r.Context(), req.Title, req.Type, req.Options)
		if err != nil {
			httpx.Error(w, r, "poll.create", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, poll)
	}
}

func ListPolls(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		polls, err := app.Polls.ListPolls(r.Context())
		if err != nil {
			httpx.Error(w, r, "poll.list", err)
			return
		}
		render.JSON(w, r, polls)
	}
}

func GetPoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollID, ok := urlID(w, r)
		if !ok {
			return
		}

		poll, err := app.Polls.GetPoll(r.Context(), pollID)
		if err != nil {
			httpx.Error(w, r, "poll.get", err)
			return
		}
		render.JSON(w, r, poll)
	}
}

type voteRequest struct {
	Data json.RawMessage `json:"data"`
}

// Vote records the caller's vote. The voter is always the session user.
func Vote(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollID, ok := urlID(w, r)
		if !ok {
			return
		}
		principal, _ := middlewares.PrincipalFrom(r.Context())

		req := voteRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		ballot, err := app.Polls.VoteRaw(r.Context(), pollID, principal.UserID, req.Data)
		if err != nil {
			httpx.Error(w, r, "poll.vote", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ballot)
	}
}

type optionRequest struct {
	Title string `json:"title"`
}

func AddOption(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollID, ok := urlID(w, r)
		if !ok {
			return
		}

		req := optionRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		option, err := app.Polls.AddOption(r.Context(), pollID, req.Title)
		if err != nil {
			httpx.Error(w, r, "poll.add_option", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, option)
	}
}

type idRequest struct {
	ID int64 `json:"id"`
}

func RemoveOption(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollID, ok := urlID(w, r)
		if !ok {
			return
		}

		req := idRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil || req.ID < 1 {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "option id is required")
			return
		}

		removed, err := app.Polls.RemoveOption(r.Context(), pollID, req.ID)
		if err != nil {
			httpx.Error(w, r, "poll.remove_option", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"id":           req.ID,
			"removedVotes": removed,
		})
	}
}

func GetVotersForPoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollID, ok := urlID(w, r)
		if !ok {
			return
		}

		voters, err := app.Polls.GetVotersForPoll(r.Context(), pollID)
		if err != nil {
			httpx.Error(w, r, "poll.voters", err)
			return
		}
		render.JSON(w, r, voters)
	}
}

// DeleteVote removes a single choice vote. Only its owner or an admin may do so.
func DeleteVote(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middlewares.PrincipalFrom(r.Context())

		req := idRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil || req.ID < 1 {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "vote id is required")
			return
		}

		vote, err := app.Polls.GetChoiceVote(r.Context(), req.ID)
		if err != nil {
			httpx.Error(w, r, "poll.delete_vote.get", err)
			return
		}
		if err = service.CanActFor(principal, vote.UserID); err != nil {
			httpx.Error(w, r, "poll.delete_vote.owner", err)
			return
		}

		err = app.Polls.DeleteVote(r.Context(), req.ID)
		if err != nil {
			httpx.Error(w, r, "poll.delete_vote", err)
			return
		}
		render.JSON(w, r, vote)
	}
}

type userVotesRequest struct {
	UserID int64 `json:"userId"`
}

// RemoveVotesForUser clears the choice votes of a user, the caller by default.
func RemoveVotesForUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middlewares.PrincipalFrom(r.Context())

		req := userVotesRequest{}
		if r.ContentLength != 0 {
			err := render.DecodeJSON(r.Body, &req)
			if err != nil {
				httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
				return
			}
		}
		if req.UserID == 0 {
			req.UserID = principal.UserID
		}
		if err := service.CanActFor(principal, req.UserID); err != nil {
			httpx.Error(w, r, "poll.remove_user_votes.owner", err)
			return
		}

		removed, err := app.Polls.DeleteVotesForUser(r.Context(), req.UserID)
		if err != nil {
			httpx.Error(w, r, "poll.remove_user_votes", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"userId":       req.UserID,
			"removedVotes": removed,
		})
	}
}
