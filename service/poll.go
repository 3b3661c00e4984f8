package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-poll/database"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/metrics"
	"github.com/mbolis/quick-poll/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PollOptions struct {
	// VotesBlocked rejects every vote with ErrVotingClosed.
	VotesBlocked bool
}

type PollService struct {
	db      *sql.DB
	metrics *metrics.PollMetrics
	opts    PollOptions
}

func NewPollService(db *sql.DB, m *metrics.PollMetrics, opts PollOptions) *PollService {
	return &PollService{db: db, metrics: m, opts: opts}
}

// CreatePoll stores a poll and, for choice polls, its initial options in a
// single transaction. Option titles are ignored for text polls.
func (s *PollService) CreatePoll(ctx context.Context, title string, pollType model.PollType, optionTitles []string) (*model.Poll, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, newError(ErrValidation, "poll title is required")
	}
	if !pollType.Valid() {
		return nil, newError(ErrValidation, "poll type must be %s or %s", model.PollChoice, model.PollText)
	}
	if pollType == model.PollChoice {
		if len(optionTitles) == 0 {
			return nil, newError(ErrValidation, "choice polls need at least one option")
		}
		for _, t := range optionTitles {
			if strings.TrimSpace(t) == "" {
				return nil, newError(ErrValidation, "option titles cannot be blank")
			}
		}
	}

	poll := &model.Poll{Title: title, Type: pollType, Options: []model.PollOption{}}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO poll (title, type) VALUES ($1, $2)
			RETURNING id`,
			title,
			string(pollType),
		).Scan(&poll.ID)
		if err != nil {
			return errors.Wrap(err, "db.insert_poll")
		}

		if pollType != model.PollChoice {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO poll_option (poll_id, title) VALUES ($1, $2)
			RETURNING id`)
		if err != nil {
			return errors.Wrap(err, "db.insert_poll.options.prepare")
		}
		defer stmt.Close()

		for _, t := range optionTitles {
			o := model.PollOption{PollID: poll.ID, Title: strings.TrimSpace(t)}
			err = stmt.QueryRowContext(ctx, o.PollID, o.Title).Scan(&o.ID)
			if err != nil {
				return errors.Wrap(err, "db.insert_poll.options.insert")
			}
			poll.Options = append(poll.Options, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PollsCreated.WithLabelValues(string(pollType)).Inc()
	log.Debugf("poll %d created (%s, %d options)", poll.ID, pollType, len(poll.Options))
	return poll, nil
}

// AddOption attaches a new option to a poll. The poll type is not checked.
func (s *PollService) AddOption(ctx context.Context, pollID int64, title string) (*model.PollOption, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, newError(ErrValidation, "option title is required")
	}

	poll, err := loadPoll(ctx, s.db, pollID)
	if err != nil {
		return nil, err
	}
	if poll.Type != model.PollChoice {
		log.Warnf("adding option %q to %s poll %d", title, poll.Type, pollID)
	}

	option := &model.PollOption{PollID: pollID, Title: title}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO poll_option (poll_id, title) VALUES ($1, $2)
		RETURNING id`,
		pollID,
		title,
	).Scan(&option.ID)
	if err != nil {
		return nil, errors.Wrap(err, "db.insert_option")
	}

	return option, nil
}

// RemoveOption deletes an option of a poll together with every vote cast for
// it, atomically. It returns the number of votes removed.
func (s *PollService) RemoveOption(ctx context.Context, pollID, optionID int64) (removedVotes int64, err error) {
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM choice_vote
			WHERE poll_option_id = $1
				AND poll_id = $2`,
			optionID,
			pollID,
		)
		if err != nil {
			return errors.Wrap(err, "db.remove_option.votes")
		}
		removedVotes, err = res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "db.remove_option.votes.verify")
		}

		res, err = tx.ExecContext(ctx, `
			DELETE FROM poll_option
			WHERE id = $1
				AND poll_id = $2`,
			optionID,
			pollID,
		)
		if err != nil {
			return errors.Wrap(err, "db.remove_option")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "db.remove_option.verify")
		}
		if n < 1 {
			return newError(ErrNotFound, "option %d not found in poll %d", optionID, pollID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Debugf("option %d removed from poll %d with %d votes", optionID, pollID, removedVotes)
	return removedVotes, nil
}

// Vote records a user's answer to a poll. The payload variant must match the
// stored poll type; a user votes at most once on a choice poll, but text polls
// accept any number of responses.
func (s *PollService) Vote(ctx context.Context, pollID, userID int64, payload model.VotePayload) (*model.Ballot, error) {
	return s.vote(ctx, pollID, userID, func() (model.VotePayload, error) {
		return payload, nil
	})
}

// VoteRaw is Vote with the payload still JSON encoded. A malformed payload is
// only reported once the poll and the user are known to exist.
func (s *PollService) VoteRaw(ctx context.Context, pollID, userID int64, raw []byte) (*model.Ballot, error) {
	return s.vote(ctx, pollID, userID, func() (model.VotePayload, error) {
		return DecodeVotePayload(raw)
	})
}

type payloadFunc func() (model.VotePayload, error)

func (s *PollService) vote(ctx context.Context, pollID, userID int64, payload payloadFunc) (*model.Ballot, error) {
	if s.opts.VotesBlocked {
		s.metrics.VotesRejected.WithLabelValues("", "blocked").Inc()
		return nil, newError(ErrVotingClosed, "voting is closed")
	}

	var pollType model.PollType
	var ballot *model.Ballot
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		poll, err := loadPoll(ctx, tx, pollID)
		if err != nil {
			return err
		}
		pollType = poll.Type

		userName, err := lockVoter(ctx, tx, userID)
		if err != nil {
			return err
		}

		switch poll.Type {
		case model.PollChoice:
			ballot, err = insertChoiceVotes(ctx, tx, poll, userID, userName, payload)
		case model.PollText:
			ballot, err = insertTextVote(ctx, tx, poll, userID, payload)
		default:
			err = errors.Errorf("poll %d has unknown type %q", poll.ID, poll.Type)
		}
		return err
	})
	if err != nil {
		s.countRejection(pollType, err)
		return nil, err
	}

	recorded := len(ballot.ChoiceVotes)
	if ballot.TextVote != nil {
		recorded = 1
	}
	s.metrics.VotesRecorded.WithLabelValues(string(pollType)).Add(float64(recorded))
	log.WithFields(log.Fields{
		"poll":  pollID,
		"user":  userID,
		"type":  pollType,
		"votes": recorded,
	}).Debug("vote recorded")
	return ballot, nil
}

// lockVoter reads the voter's name through a no-op update, which holds the
// user row until commit on every driver. Concurrent ballots by the same user
// run one after the other, so the later one sees the earlier one's votes.
func lockVoter(ctx context.Context, tx *sql.Tx, userID int64) (string, error) {
	var name string
	err := tx.QueryRowContext(ctx, `
		UPDATE app_user
		SET name = name
		WHERE id = $1
		RETURNING name`,
		userID,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", newError(ErrNotFound, "user %d not found", userID)
	}
	if err != nil {
		return "", errors.Wrap(err, "db.vote.lock_user")
	}
	return name, nil
}

func insertChoiceVotes(ctx context.Context, tx *sql.Tx, poll *model.Poll, userID int64, userName string, payload payloadFunc) (*model.Ballot, error) {
	var voted bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM choice_vote
			WHERE user_id = $1
				AND poll_id = $2
		)`,
		userID,
		poll.ID,
	).Scan(&voted)
	if err != nil {
		return nil, errors.Wrap(err, "db.vote.check_duplicate")
	}
	if voted {
		return nil, &DuplicateVoteError{UserName: userName, PollTitle: poll.Title}
	}

	p, err := payload()
	if err != nil {
		return nil, err
	}
	choice, ok := p.(model.ChoicePayload)
	if !ok || len(choice.OptionIDs) == 0 {
		return nil, newError(ErrInvalidPayload, "choice polls expect a non-empty array of option ids")
	}

	options, err := optionIDs(ctx, tx, poll.ID)
	if err != nil {
		return nil, err
	}
	for _, id := range choice.OptionIDs {
		if !options[id] {
			return nil, newError(ErrInvalidPayload, "option %d does not belong to poll %d", id, poll.ID)
		}
	}

	// an option repeated within one submission is stored once
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO choice_vote (user_id, poll_id, poll_option_id) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		RETURNING id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.vote.choice.prepare")
	}
	defer stmt.Close()

	ballot := &model.Ballot{PollID: poll.ID, UserID: userID, Type: poll.Type, ChoiceVotes: []model.ChoiceVote{}}
	for _, optionID := range choice.OptionIDs {
		v := model.ChoiceVote{UserID: userID, PollID: poll.ID, OptionID: optionID}
		err = stmt.QueryRowContext(ctx, userID, poll.ID, optionID).Scan(&v.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "db.vote.choice.insert")
		}
		ballot.ChoiceVotes = append(ballot.ChoiceVotes, v)
	}

	return ballot, nil
}

func insertTextVote(ctx context.Context, tx *sql.Tx, poll *model.Poll, userID int64, payload payloadFunc) (*model.Ballot, error) {
	p, err := payload()
	if err != nil {
		return nil, err
	}
	text, ok := p.(model.TextPayload)
	if !ok {
		return nil, newError(ErrInvalidPayload, "text polls expect a string")
	}

	v := &model.TextVote{UserID: userID, PollID: poll.ID, Text: text.Text}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO text_vote (user_id, poll_id, text) VALUES ($1, $2, $3)
		RETURNING id`,
		userID,
		poll.ID,
		text.Text,
	).Scan(&v.ID)
	if err != nil {
		return nil, errors.Wrap(err, "db.vote.text.insert")
	}

	return &model.Ballot{PollID: poll.ID, UserID: userID, Type: poll.Type, TextVote: v}, nil
}

func (s *PollService) countRejection(pollType model.PollType, err error) {
	var reason string
	switch {
	case errors.Is(err, ErrDuplicateVote):
		reason = "duplicate"
	case errors.Is(err, ErrInvalidPayload):
		reason = "invalid_payload"
	default:
		return
	}
	s.metrics.VotesRejected.WithLabelValues(string(pollType), reason).Inc()
}

// ListPolls returns every poll with its options and a summary of the votes
// referencing it.
func (s *PollService) ListPolls(ctx context.Context) ([]model.Poll, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.id, p.title, p.type,
			(SELECT COUNT(*) FROM choice_vote c WHERE c.poll_id = p.id),
			(SELECT COUNT(*) FROM text_vote t WHERE t.poll_id = p.id)
		FROM poll p
		ORDER BY p.id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_polls")
	}
	defer rows.Close()

	polls := []model.Poll{}
	index := map[int64]int{}
	for rows.Next() {
		p := model.Poll{Options: []model.PollOption{}, Counts: &model.VoteCounts{}}
		err = rows.Scan(&p.ID, &p.Title, &p.Type, &p.Counts.ChoiceVotes, &p.Counts.TextVotes)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_polls.scan")
		}
		index[p.ID] = len(polls)
		polls = append(polls, p)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "db.get_polls.rows")
	}

	optRows, err := s.db.QueryContext(ctx, `
		SELECT id, poll_id, title
		FROM poll_option
		ORDER BY poll_id, id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_polls.options")
	}
	defer optRows.Close()

	for optRows.Next() {
		o := model.PollOption{}
		err = optRows.Scan(&o.ID, &o.PollID, &o.Title)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_polls.options.scan")
		}
		if i, ok := index[o.PollID]; ok {
			polls[i].Options = append(polls[i].Options, o)
		}
	}

	return polls, errors.Wrap(optRows.Err(), "db.get_polls.options.rows")
}

// GetPoll returns one poll. Choice poll options carry their own vote count;
// text polls only carry the summary counts.
func (s *PollService) GetPoll(ctx context.Context, pollID int64) (*model.Poll, error) {
	poll, err := loadPoll(ctx, s.db, pollID)
	if err != nil {
		return nil, err
	}

	poll.Counts = &model.VoteCounts{}
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM choice_vote WHERE poll_id = $1),
			(SELECT COUNT(*) FROM text_vote WHERE poll_id = $1)`,
		pollID,
	).Scan(&poll.Counts.ChoiceVotes, &poll.Counts.TextVotes)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_poll.counts")
	}

	poll.Options = []model.PollOption{}
	if poll.Type != model.PollChoice {
		return poll, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.title, COUNT(v.id)
		FROM poll_option o
		LEFT OUTER JOIN choice_vote v ON (v.poll_option_id = o.id)
		WHERE o.poll_id = $1
		GROUP BY o.id, o.title
		ORDER BY o.id`,
		pollID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_poll.options")
	}
	defer rows.Close()

	for rows.Next() {
		o := model.PollOption{PollID: pollID}
		var votes int64
		err = rows.Scan(&o.ID, &o.Title, &votes)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_poll.options.scan")
		}
		o.Votes = &votes
		poll.Options = append(poll.Options, o)
	}

	return poll, errors.Wrap(rows.Err(), "db.get_poll.options.rows")
}

// GetVotersForPoll lists who voted for each option of a choice poll, or who
// wrote each response of a text poll.
func (s *PollService) GetVotersForPoll(ctx context.Context, pollID int64) (*model.PollVoters, error) {
	poll, err := loadPoll(ctx, s.db, pollID)
	if err != nil {
		return nil, err
	}

	result := &model.PollVoters{ID: poll.ID, Title: poll.Title, Type: poll.Type}
	if poll.Type == model.PollText {
		result.Responses, err = s.textResponses(ctx, pollID)
		return result, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			o.id, o.title,
			u.id, u.name, u.national_id
		FROM poll_option o
		LEFT OUTER JOIN choice_vote v ON (v.poll_option_id = o.id)
		LEFT OUTER JOIN app_user u ON (u.id = v.user_id)
		WHERE o.poll_id = $1
		ORDER BY o.id, v.id`,
		pollID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_voters")
	}
	defer rows.Close()

	result.Options = []model.OptionVoters{}
	for rows.Next() {
		var optionID int64
		var optionTitle string
		var userID sql.NullInt64
		var name, nationalID sql.NullString
		err = rows.Scan(&optionID, &optionTitle, &userID, &name, &nationalID)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_voters.scan")
		}

		last := len(result.Options) - 1
		if last < 0 || result.Options[last].ID != optionID {
			result.Options = append(result.Options, model.OptionVoters{ID: optionID, Title: optionTitle, Voters: []model.Voter{}})
			last++
		}
		if userID.Valid {
			result.Options[last].Voters = append(result.Options[last].Voters, model.Voter{
				UserID:     userID.Int64,
				Name:       name.String,
				NationalID: nationalID.String,
			})
		}
	}

	return result, errors.Wrap(rows.Err(), "db.get_voters.rows")
}

func (s *PollService) textResponses(ctx context.Context, pollID int64) ([]model.TextResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.text, u.id, u.name, u.national_id
		FROM text_vote t
		INNER JOIN app_user u ON (u.id = t.user_id)
		WHERE t.poll_id = $1
		ORDER BY t.id`,
		pollID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_responses")
	}
	defer rows.Close()

	responses := []model.TextResponse{}
	for rows.Next() {
		r := model.TextResponse{}
		err = rows.Scan(&r.ID, &r.Text, &r.UserID, &r.Name, &r.NationalID)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_responses.scan")
		}
		responses = append(responses, r)
	}

	return responses, errors.Wrap(rows.Err(), "db.get_responses.rows")
}

func (s *PollService) GetChoiceVote(ctx context.Context, voteID int64) (*model.ChoiceVote, error) {
	v := &model.ChoiceVote{ID: voteID}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, poll_id, poll_option_id
		FROM choice_vote
		WHERE id = $1`,
		voteID,
	).Scan(&v.UserID, &v.PollID, &v.OptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrNotFound, "vote %d not found", voteID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.get_vote")
	}
	return v, nil
}

// DeleteVote hard-deletes a single choice vote.
func (s *PollService) DeleteVote(ctx context.Context, voteID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM choice_vote WHERE id = $1`,
		voteID,
	)
	if err != nil {
		return errors.Wrap(err, "db.delete_vote")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "db.delete_vote.verify")
	}
	if n < 1 {
		return newError(ErrNotFound, "vote %d not found", voteID)
	}
	return nil
}

// DeleteVotesForUser hard-deletes every choice vote of a user and returns how
// many were removed.
func (s *PollService) DeleteVotesForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM choice_vote WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "db.delete_user_votes")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "db.delete_user_votes.verify")
	}
	return n, nil
}

func loadPoll(ctx context.Context, q querier, pollID int64) (*model.Poll, error) {
	poll := &model.Poll{ID: pollID}
	err := q.QueryRowContext(ctx, `
		SELECT title, type FROM poll WHERE id = $1`,
		pollID,
	).Scan(&poll.Title, &poll.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrNotFound, "poll %d not found", pollID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.get_poll")
	}
	return poll, nil
}

func optionIDs(ctx context.Context, q querier, pollID int64) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM poll_option WHERE poll_id = $1`,
		pollID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_option_ids")
	}
	defer rows.Close()

	ids := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "db.get_option_ids.scan")
		}
		ids[id] = true
	}
	return ids, errors.Wrap(rows.Err(), "db.get_option_ids.rows")
}
