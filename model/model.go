package model

import "time"

type Role string

const (
	RoleOrdinary Role = "ORDINARY"
	RoleAdmin    Role = "ADMIN"
)

type PollType string

const (
	PollChoice PollType = "CHOICE"
	PollText   PollType = "TEXT"
)

func (t PollType) Valid() bool {
	return t == PollChoice || t == PollText
}

type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	NationalID string `json:"nationalId"`
	Role       Role   `json:"role"`
}

// UserDetail is a user together with every vote they cast.
type UserDetail struct {
	User
	ChoiceVotes []UserChoiceVote `json:"choiceVotes"`
	TextVotes   []UserTextVote   `json:"textVotes"`
}

type UserChoiceVote struct {
	ID          int64  `json:"id"`
	PollID      int64  `json:"pollId"`
	PollTitle   string `json:"pollTitle"`
	OptionID    int64  `json:"pollOptionId"`
	OptionTitle string `json:"optionTitle"`
}

type UserTextVote struct {
	ID        int64  `json:"id"`
	PollID    int64  `json:"pollId"`
	PollTitle string `json:"pollTitle"`
	Text      string `json:"text"`
}

// Principal is the identity carried by a verified session token.
type Principal struct {
	UserID int64
	Name   string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Poll struct {
	ID      int64        `json:"id"`
	Title   string       `json:"title"`
	Type    PollType     `json:"type"`
	Options []PollOption `json:"options"`
	Counts  *VoteCounts  `json:"counts,omitempty"`
}

type PollOption struct {
	ID     int64  `json:"id"`
	PollID int64  `json:"pollId"`
	Title  string `json:"title"`
	// Votes is only filled in by per-poll result queries.
	Votes *int64 `json:"votes,omitempty"`
}

type VoteCounts struct {
	ChoiceVotes int64 `json:"choiceVotes"`
	TextVotes   int64 `json:"textVotes"`
}

type ChoiceVote struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"userId"`
	PollID   int64 `json:"pollId"`
	OptionID int64 `json:"pollOptionId"`
}

type TextVote struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	PollID int64  `json:"pollId"`
	Text   string `json:"text"`
}

// Ballot is what a single Vote call recorded.
type Ballot struct {
	PollID      int64        `json:"pollId"`
	UserID      int64        `json:"userId"`
	Type        PollType     `json:"type"`
	ChoiceVotes []ChoiceVote `json:"choiceVotes,omitempty"`
	TextVote    *TextVote    `json:"textVote,omitempty"`
}

// PollVoters is the audit view of a poll: who chose what, or who wrote what.
type PollVoters struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Type      PollType       `json:"type"`
	Options   []OptionVoters `json:"options,omitempty"`
	Responses []TextResponse `json:"responses,omitempty"`
}

type OptionVoters struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Voters []Voter `json:"voters"`
}

type Voter struct {
	UserID     int64  `json:"userId"`
	Name       string `json:"name"`
	NationalID string `json:"nationalId"`
}

type TextResponse struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Voter
}

// VotePayload is either a ChoicePayload or a TextPayload.
type VotePayload interface {
	votePayload()
}

type ChoicePayload struct {
	OptionIDs []int64
}

type TextPayload struct {
	Text string
}

func (ChoicePayload) votePayload() {}
func (TextPayload) votePayload()   {}
