package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

const startingLives = 3

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrGameOver          = errors.New("game over")
	ErrNoPendingQuestion = errors.New("no question awaiting an answer")
	ErrQuestionMismatch  = errors.New("answer is for a different question")
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Points awarded for spotting the AI answer.
func (d Difficulty) Points() int {
	switch d {
	case Medium:
		return 20
	case Hard:
		return 30
	default:
		return 10
	}
}

func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

type Session struct {
	ID                string     `json:"sessionId"`
	Nickname          string     `json:"nickname"`
	Difficulty        Difficulty `json:"difficulty"`
	Score             int        `json:"score"`
	Lives             int        `json:"lives"`
	QuestionsAnswered int        `json:"questionsAnswered"`
	CreatedAt         time.Time  `json:"createdAt"`

	// The dealt question and which slot holds its AI answer. Never sent
	// to the player.
	CurrentQuestionID    string `json:"-"`
	CurrentCorrectAnswer string `json:"-"`
}

func (s Session) GameOver() bool {
	return s.Lives <= 0
}

// AnswerResult is the outcome of one submitted choice.
type AnswerResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	PointsEarned  int    `json:"pointsEarned"`
	Score         int    `json:"score"`
	Lives         int    `json:"lives"`
	GameOver      bool   `json:"gameOver"`
}

// SessionStore keeps game sessions in memory. Sessions are lost on restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *SessionStore) Create(nickname string, difficulty Difficulty) Session {
	session := &Session{
		ID:         "session_" + uuid.NewString(),
		Nickname:   nickname,
		Difficulty: difficulty,
		Lives:      startingLives,
		CreatedAt:  s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return *session
}

func (s *SessionStore) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *session, nil
}

// Deal records the question shown to the player and the slot ("A" or "B")
// holding its AI answer. Dealing again replaces an unanswered question.
func (s *SessionStore) Deal(id, questionID, correctAnswer string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if session.GameOver() {
		return *session, ErrGameOver
	}
	session.CurrentQuestionID = questionID
	session.CurrentCorrectAnswer = correctAnswer
	return *session, nil
}

// Answer scores choice against the dealt question. A question can only be
// answered once. An empty questionID skips the question check.
func (s *SessionStore) Answer(id, questionID, choice string) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return AnswerResult{}, ErrSessionNotFound
	}
	if session.GameOver() {
		return AnswerResult{}, ErrGameOver
	}
	if session.CurrentCorrectAnswer == "" {
		return AnswerResult{}, ErrNoPendingQuestion
	}
	if questionID != "" && questionID != session.CurrentQuestionID {
		return AnswerResult{}, ErrQuestionMismatch
	}

	result := AnswerResult{
		Correct:       choice == session.CurrentCorrectAnswer,
		CorrectAnswer: session.CurrentCorrectAnswer,
	}
	if result.Correct {
		result.PointsEarned = session.Difficulty.Points()
		session.Score += result.PointsEarned
	} else {
		session.Lives--
	}
	session.QuestionsAnswered++
	session.CurrentQuestionID = ""
	session.CurrentCorrectAnswer = ""

	result.Score = session.Score
	result.Lives = session.Lives
	result.GameOver = session.GameOver()
	return result, nil
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
