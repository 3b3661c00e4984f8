package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-poll/database"
	"github.com/mbolis/quick-poll/model"
)

type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser registers an ordinary user. National ids are unique.
func (s *UserService) CreateUser(ctx context.Context, name, nationalID string) (*model.User, error) {
	name = strings.TrimSpace(name)
	nationalID = strings.TrimSpace(nationalID)
	if name == "" || nationalID == "" {
		return nil, newError(ErrValidation, "name and national id are required")
	}

	u := &model.User{Name: name, NationalID: nationalID, Role: model.RoleOrdinary}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_user (name, national_id, role) VALUES ($1, $2, $3)
		RETURNING id`,
		name,
		nationalID,
		string(model.RoleOrdinary),
	).Scan(&u.ID)
	if database.IsUniqueViolation(err) {
		return nil, newError(ErrConflict, "national id already registered")
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.insert_user")
	}

	return u, nil
}

func (s *UserService) FindByNationalID(ctx context.Context, nationalID string) (*model.User, error) {
	u := &model.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, national_id, role
		FROM app_user
		WHERE national_id = $1`,
		strings.TrimSpace(nationalID),
	).Scan(&u.ID, &u.Name, &u.NationalID, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrNotFound, "no user registered with this national id")
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.get_user_by_national_id")
	}
	return u, nil
}

// ListUsers returns every user along with the votes they cast.
func (s *UserService) ListUsers(ctx context.Context) ([]model.UserDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, national_id, role
		FROM app_user
		ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "db.get_users")
	}
	defer rows.Close()

	users := []model.UserDetail{}
	for rows.Next() {
		u := model.UserDetail{ChoiceVotes: []model.UserChoiceVote{}, TextVotes: []model.UserTextVote{}}
		err = rows.Scan(&u.ID, &u.Name, &u.NationalID, &u.Role)
		if err != nil {
			return nil, errors.Wrap(err, "db.get_users.scan")
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "db.get_users.rows")
	}

	err = s.attachVotes(ctx, users, sql.NullInt64{})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.UserDetail, error) {
	u := model.UserDetail{ChoiceVotes: []model.UserChoiceVote{}, TextVotes: []model.UserTextVote{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, national_id, role
		FROM app_user
		WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Name, &u.NationalID, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrNotFound, "user %d not found", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.get_user")
	}

	users := []model.UserDetail{u}
	err = s.attachVotes(ctx, users, sql.NullInt64{Int64: userID, Valid: true})
	if err != nil {
		return nil, err
	}
	return &users[0], nil
}

// attachVotes fills in the votes of the given users; onlyUser narrows the
// queries when a single user is loaded.
func (s *UserService) attachVotes(ctx context.Context, users []model.UserDetail, onlyUser sql.NullInt64) error {
	index := make(map[int64]int, len(users))
	for i, u := range users {
		index[u.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.user_id, v.id, p.id, p.title, o.id, o.title
		FROM choice_vote v
		INNER JOIN poll p ON (p.id = v.poll_id)
		INNER JOIN poll_option o ON (o.id = v.poll_option_id)
		WHERE CAST($1 AS BIGINT) IS NULL OR v.user_id = $1
		ORDER BY v.id`,
		onlyUser,
	)
	if err != nil {
		return errors.Wrap(err, "db.get_users.choice_votes")
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		v := model.UserChoiceVote{}
		err = rows.Scan(&userID, &v.ID, &v.PollID, &v.PollTitle, &v.OptionID, &v.OptionTitle)
		if err != nil {
			return errors.Wrap(err, "db.get_users.choice_votes.scan")
		}
		if i, ok := index[userID]; ok {
			users[i].ChoiceVotes = append(users[i].ChoiceVotes, v)
		}
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "db.get_users.choice_votes.rows")
	}

	textRows, err := s.db.QueryContext(ctx, `
		SELECT t.user_id, t.id, p.id, p.title, t.text
		FROM text_vote t
		INNER JOIN poll p ON (p.id = t.poll_id)
		WHERE CAST($1 AS BIGINT) IS NULL OR t.user_id = $1
		ORDER BY t.id`,
		onlyUser,
	)
	if err != nil {
		return errors.Wrap(err, "db.get_users.text_votes")
	}
	defer textRows.Close()

	for textRows.Next() {
		var userID int64
		v := model.UserTextVote{}
		err = textRows.Scan(&userID, &v.ID, &v.PollID, &v.PollTitle, &v.Text)
		if err != nil {
			return errors.Wrap(err, "db.get_users.text_votes.scan")
		}
		if i, ok := index[userID]; ok {
			users[i].TextVotes = append(users[i].TextVotes, v)
		}
	}

	return errors.Wrap(textRows.Err(), "db.get_users.text_votes.rows")
}

func (s *UserService) UpdateUserName(ctx context.Context, userID int64, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(ErrValidation, "name is required")
	}

	u := &model.User{ID: userID}
	err := s.db.QueryRowContext(ctx, `
		UPDATE app_user
		SET name = $1
		WHERE id = $2
		RETURNING name, national_id, role`,
		name,
		userID,
	).Scan(&u.Name, &u.NationalID, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrNotFound, "user %d not found", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.update_user")
	}
	return u, nil
}

// DeleteUser removes a user; their votes go with them.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM app_user WHERE id = $1`,
		userID,
	)
	if err != nil {
		return errors.Wrap(err, "db.delete_user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "db.delete_user.verify")
	}
	if n < 1 {
		return newError(ErrNotFound, "user %d not found", userID)
	}
	return nil
}

// SetRole changes the role of the user with the given national id.
func (s *UserService) SetRole(ctx context.Context, nationalID string, role model.Role) (*model.User, error) {
	if role != model.RoleOrdinary && role != model.RoleAdmin {
		return nil, newError(ErrValidation, "unknown role %q", role)
	}

	u := &model.User{NationalID: strings.TrimSpace(nationalID), Role: role}
	err := s.db.QueryRowContext(ctx, `
		UPDATE app_user
		SET role = $1
		WHERE national_id = $2
		RETURNING id, name`,
		string(role),
		u.NationalID,
	).Scan(&u.ID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ErrNotFound, "no user registered with this national id")
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.set_role")
	}
	return u, nil
}
