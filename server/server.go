package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/xhad/qafilter/internal/models"
	"github.com/xhad/qafilter/pkg/pool"
	"github.com/xhad/qafilter/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var ErrEmptyPool = errors.New("no questions available")

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// NextQuestion is a pooled question with its answers shuffled into A and B.
// CorrectAnswer stays in the player's session.
type NextQuestion struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	AnswerA       string `json:"answerA"`
	AnswerB       string `json:"answerB"`
	CorrectAnswer string `json:"-"` // slot of the AI answer
}

type NextResponse struct {
	Question *NextQuestion `json:"question,omitempty"`
	Score    int           `json:"score"`
	Lives    int           `json:"lives"`
	GameOver bool          `json:"gameOver"`
}

type startRequest struct {
	Nickname   string     `json:"nickname"`
	Difficulty Difficulty `json:"difficulty"`
}

type submitRequest struct {
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Choice     string `json:"choice"`
}

const maxBulkUpload = 50

// Generator adds new questions to the pool.
type Generator interface {
	ProcessBatch(ctx context.Context, count int, onProgress pool.Progress) (pool.BatchResult, error)
}

type Config struct {
	MaxGenerate int
	Logger      *slog.Logger
	Rand        func(n int) int
}

type Server struct {
	config     Config
	store      store.Store
	sessions   *SessionStore
	generator  Generator
	generating atomic.Bool
}

func New(config Config, s store.Store, generator Generator) *Server {
	if config.MaxGenerate == 0 {
		config.MaxGenerate = 5
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Rand == nil {
		config.Rand = rand.IntN
	}
	return &Server{config: config, store: s, sessions: NewSessionStore(), generator: generator}
}

func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/questions", s.handleList)
	api.HandleFunc("GET /api/questions/next", s.handleNext)
	api.HandleFunc("POST /api/questions/bulk", s.handleBulkUpload)
	api.HandleFunc("PUT /api/questions/{id}", s.handleUpdate)
	api.HandleFunc("DELETE /api/questions/{id}", s.handleDelete)
	api.HandleFunc("POST /api/game/start", s.handleStart)
	api.HandleFunc("POST /api/game/submit", s.handleSubmit)

	mux := http.NewServeMux()
	mux.Handle("/api/", gzhttp.GzipHandler(api))
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	questions, err := s.store.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"stats":     stats,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("nickname is required"))
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = Easy
	}
	if !req.Difficulty.Valid() {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown difficulty %q", req.Difficulty))
		return
	}

	session := s.sessions.Create(req.Nickname, req.Difficulty)
	s.config.Logger.Info("game started",
		"session", session.ID,
		"nickname", session.Nickname,
		"difficulty", session.Difficulty,
		"sessions", s.sessions.Len())

	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("sessionId is required"))
		return
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if session.GameOver() {
		writeJSON(w, http.StatusOK, NextResponse{Score: session.Score, Lives: session.Lives, GameOver: true})
		return
	}

	next, err := s.pick(r.Context())
	if errors.Is(err, ErrEmptyPool) {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	session, err = s.sessions.Deal(sessionID, next.ID, next.CorrectAnswer)
	switch {
	case errors.Is(err, ErrGameOver):
		writeJSON(w, http.StatusOK, NextResponse{Score: session.Score, Lives: session.Lives, GameOver: true})
		return
	case err != nil:
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusOK, NextResponse{
		Question: next,
		Score:    session.Score,
		Lives:    session.Lives,
	})
}

// pick draws a playable question and shuffles its answers.
func (s *Server) pick(ctx context.Context) (*NextQuestion, error) {
	questions, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	// Questions missing either answer cannot be played.
	playable := questions[:0]
	for _, q := range questions {
		if q.AnswerAI != "" && q.AnswerHuman != "" {
			playable = append(playable, q)
		}
	}
	if len(playable) == 0 {
		return nil, ErrEmptyPool
	}

	q := playable[s.config.Rand(len(playable))]
	next := &NextQuestion{ID: q.ID, Question: q.Question}
	if s.config.Rand(2) == 0 {
		next.AnswerA, next.AnswerB, next.CorrectAnswer = q.AnswerAI, q.AnswerHuman, "A"
	} else {
		next.AnswerA, next.AnswerB, next.CorrectAnswer = q.AnswerHuman, q.AnswerAI, "B"
	}
	return next, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("sessionId is required"))
		return
	}
	if req.Choice != "A" && req.Choice != "B" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("choice must be A or B, got %q", req.Choice))
		return
	}

	result, err := s.sessions.Answer(req.SessionID, req.QuestionID, req.Choice)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.writeError(w, http.StatusConflict, err)
		return
	}

	if result.GameOver {
		session, _ := s.sessions.Get(req.SessionID)
		s.config.Logger.Info("game over",
			"session", req.SessionID,
			"nickname", session.Nickname,
			"score", result.Score,
			"answered", session.QuestionsAnswered)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch models.Question
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	patch.ID = r.PathValue("id")

	updated, err := s.store.Update(r.Context(), patch)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("question %s not found", patch.ID))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleBulkUpload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Questions []models.Question `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if len(req.Questions) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("questions are required"))
		return
	}
	if len(req.Questions) > maxBulkUpload {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("at most %d questions per upload", maxBulkUpload))
		return
	}

	now := time.Now()
	for i := range req.Questions {
		q := &req.Questions[i]
		if q.Question == "" || q.AnswerAI == "" || q.AnswerHuman == "" {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("question %d needs question, answerAI and answerHuman", i+1))
			return
		}
		if q.ID == "" {
			q.ID = "bulk_" + uuid.NewString()
		}
		if q.Source == "" {
			q.Source = "Bulk Upload"
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = now
		}
	}

	added, err := s.store.Add(r.Context(), req.Questions)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.config.Logger.Info("bulk upload", "received", len(req.Questions), "added", added)
	writeJSON(w, http.StatusOK, map[string]int{"received": len(req.Questions), "uploaded": added})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("question %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	var wg sync.WaitGroup
	defer wg.Wait()

	// Stop generation once the client goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.config.Logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendMessage(c, Message{Type: "error", Content: "invalid message"})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, c *conn, msg Message) {
	switch msg.Type {
	case "generate":
		s.generate(ctx, c, msg.Content)
	default:
		s.sendMessage(c, Message{Type: "error", Content: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (s *Server) generate(ctx context.Context, c *conn, content string) {
	count := 1
	if content = strings.TrimSpace(content); content != "" {
		n, err := strconv.Atoi(content)
		if err != nil || n < 1 {
			s.sendMessage(c, Message{Type: "error", Content: fmt.Sprintf("invalid question count %q", content)})
			return
		}
		count = min(n, s.config.MaxGenerate)
	}

	if !s.generating.CompareAndSwap(false, true) {
		s.sendMessage(c, Message{Type: "error", Content: "generation already running"})
		return
	}
	defer s.generating.Store(false)

	s.sendMessage(c, Message{Type: "status", Content: fmt.Sprintf("Generating %d questions", count)})

	result, err := s.generator.ProcessBatch(ctx, count, func(done, total int, q *models.Question, err error) {
		if err != nil {
			s.sendMessage(c, Message{Type: "progress", Content: fmt.Sprintf("%d/%d failed: %v", done, total, err)})
			return
		}
		s.sendMessage(c, Message{Type: "progress", Content: fmt.Sprintf("%d/%d", done, total)})
		s.sendMessage(c, Message{Type: "question", Content: q.Question, Data: q})
	})
	if err != nil {
		s.sendMessage(c, Message{Type: "error", Content: err.Error()})
		return
	}

	s.sendMessage(c, Message{
		Type:    "status",
		Content: fmt.Sprintf("Added %d questions, pool size %d", result.Added, result.PoolSize),
		Data:    result,
	})
}

func (s *Server) sendMessage(c *conn, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		s.config.Logger.Debug("websocket write failed", "type", msg.Type, "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.config.Logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
