// Package platformtest runs an in-process quest platform for tests. It
// verifies signed sign-in messages, issues session cookies and keeps quest
// history per address.
package platformtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ohmynofan/questline-bot/internal/adapters/wallet"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
)

const (
	SessionCookie = "questline.session"
	CSRFToken     = "csrf-fixed-token"
	DailyQuestID  = "q-daily"
	DailyCredits  = 10
	GameQuestID   = "q-mines"
	GameCredits   = 3
)

// Login is one credentials submission as seen by the server.
type Login struct {
	Address          string
	RecaptchaToken   string
	RecaptchaTokenV2 string
	ReferralCode     string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	quests      []model.Quest
	history     map[string][]model.UserQuestRecord
	submissions map[string]int
	logins      []Login
	boards      map[string][][]int
	gameRows    int
	gameCols    int
	now         func() time.Time
}

func NewServer() *Server {
	s := &Server{
		quests:      []model.Quest{{ID: DailyQuestID, Title: "Daily Check-in"}},
		history:     make(map[string][]model.UserQuestRecord),
		submissions: make(map[string]int),
		boards:      make(map[string][][]int),
		now:         time.Now,
	}

	r := chi.NewRouter()
	r.Get("/api/auth/csrf", s.csrf)
	r.Post("/api/auth/callback/credentials", s.login)
	r.Get("/api/auth/session", s.session)
	r.Get("/api/users/me", s.me)
	r.Get("/api/quests", s.listQuests)
	r.Get("/api/user-quests", s.listHistory)
	r.Post("/api/user-quests", s.submit)

	s.Server = httptest.NewServer(r)
	return s
}

// AddMinigame lists a minigame quest titled title with a rows x cols board.
// Every click reveals a safe cell; the game is won once nothing is hidden.
func (s *Server) AddMinigame(title string, rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quests = append(s.quests, model.Quest{ID: GameQuestID, Title: title})
	s.gameRows, s.gameCols = rows, cols
}

// Complete seeds a completed record of questID for address dated now.
func (s *Server) Complete(address, questID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(address)
	s.history[key] = append(s.history[key], model.UserQuestRecord{
		QuestID:   questID,
		Status:    model.QuestStatusCompleted,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Credits:   DailyCredits,
	})
}

// Submissions counts quest actions posted by address.
func (s *Server) Submissions(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[strings.ToLower(address)]
}

func (s *Server) Logins() []Login {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Login(nil), s.logins...)
}

func (s *Server) csrf(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": CSRFToken})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	message := r.PostForm.Get("message")
	recovered, err := wallet.RecoverAddress(message, r.PostForm.Get("signature"))
	if err != nil || !strings.Contains(message, recovered.Hex()) {
		writeJSON(w, http.StatusOK, map[string]string{"url": s.URL + "/api/auth/error?error=CredentialsSignin"})
		return
	}
	login := Login{
		Address:          recovered.Hex(),
		RecaptchaToken:   r.PostForm.Get("recaptchaToken"),
		RecaptchaTokenV2: r.PostForm.Get("recaptchaTokenV2"),
		ReferralCode:     r.PostForm.Get("referralCode"),
	}
	s.mu.Lock()
	s.logins = append(s.logins, login)
	s.mu.Unlock()

	if login.RecaptchaToken == "" && login.RecaptchaTokenV2 == "" {
		writeJSON(w, http.StatusOK, map[string]string{"url": s.URL + "/api/auth/error?error=Captcha"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: login.Address, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"url": r.PostForm.Get("callbackUrl")})
}

func (s *Server) user(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	address := s.user(r)
	if address == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]string{"address": address, "name": displayName(address)},
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	address := s.user(r)
	if address == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	s.mu.Lock()
	var credits int64
	for _, rec := range s.history[strings.ToLower(address)] {
		credits += rec.Credits
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"name":    displayName(address),
		"credits": credits,
	})
}

func (s *Server) listQuests(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.quests)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	address := s.user(r)
	if address == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.history[strings.ToLower(address)]
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	address := s.user(r)
	if address == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	var body struct {
		QuestID  string          `json:"questId"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	key := strings.ToLower(address)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[key]++
	if body.QuestID == GameQuestID {
		s.play(w, key, body.Metadata)
		return
	}
	today := model.Today(s.now())
	for _, rec := range s.history[key] {
		if rec.QuestID == body.QuestID && rec.Day() == today {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Quest already completed today"})
			return
		}
	}
	s.history[key] = append(s.history[key], model.UserQuestRecord{
		QuestID:   body.QuestID,
		Status:    model.QuestStatusCompleted,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Credits:   DailyCredits,
	})
	writeJSON(w, http.StatusOK, model.QuestSubmission{
		QuestID: body.QuestID,
		Status:  model.QuestStatusCompleted,
		Credits: DailyCredits,
	})
}

// play answers a minigame action. Callers hold s.mu.
func (s *Server) play(w http.ResponseWriter, key string, raw json.RawMessage) {
	var move struct {
		Action string `json:"action"`
		Row    int    `json:"row"`
		Col    int    `json:"col"`
	}
	if err := json.Unmarshal(raw, &move); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	board := s.boards[key]
	if move.Action == "start" || board == nil {
		board = make([][]int, s.gameRows)
		for r := range board {
			board[r] = make([]int, s.gameCols)
			for c := range board[r] {
				board[r][c] = model.CellHidden
			}
		}
		s.boards[key] = board
	} else if move.Row >= 0 && move.Row < len(board) && move.Col >= 0 && move.Col < len(board[move.Row]) {
		board[move.Row][move.Col] = 0
	}

	over := true
	for _, row := range board {
		for _, v := range row {
			if v == model.CellHidden {
				over = false
			}
		}
	}
	var credits int64
	if over {
		credits = GameCredits
		s.history[key] = append(s.history[key], model.UserQuestRecord{
			QuestID:   GameQuestID,
			Status:    model.QuestStatusCompleted,
			CreatedAt: s.now().UTC().Format(time.RFC3339),
			Credits:   credits,
		})
	}
	data, _ := json.Marshal(map[string]interface{}{
		"board":    board,
		"moveId":   fmt.Sprintf("move-%d", s.submissions[key]),
		"gameOver": over,
		"credits":  credits,
	})
	writeJSON(w, http.StatusOK, model.QuestSubmission{
		QuestID: GameQuestID,
		Status:  "in_progress",
		Credits: credits,
		Data:    data,
	})
}

func displayName(address string) string {
	if len(address) < 6 {
		return address
	}
	return fmt.Sprintf("user-%s", strings.ToLower(address[2:6]))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
