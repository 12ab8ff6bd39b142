// Package smsctest provides an in-memory fake of the SMSC.ru gateway for
// testing code built on the smsc client. It speaks the gateway's wire
// format: GET with query parameters in, JSON out, business errors as
// error/error_code fields inside a 200 reply.
package smsctest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
)

// Characters per billed message part.
const partLength = 100

// Price per billed message part.
const partCost = 1.44

// SentMessage records one delivery accepted by the fake gateway.
type SentMessage struct {
	ID     int64
	Phones []string
	Text   string
	Sender string
	Query  url.Values
}

// StatusEntry is a scripted delivery status for a phone/id pair.
type StatusEntry struct {
	Status     int
	StatusName string
	SendTime   time.Time
	LastTime   time.Time
	Extra      map[string]any
}

// Server is a fake SMSC gateway bound to an httptest listener.
type Server struct {
	login    string
	password string

	mu       sync.Mutex
	nextID   int64
	sent     []SentMessage
	statuses map[string]StatusEntry
	failures []int
	balance  float64
	currency string

	httpServer *httptest.Server
}

// New starts a fake gateway accepting the given credentials.
// Callers must Close it when done.
func New(login, password string) *Server {
	s := &Server{
		login:    login,
		password: password,
		nextID:   1,
		statuses: map[string]StatusEntry{},
		balance:  100.01,
		currency: "RUR",
	}

	r := chi.NewRouter()
	r.Get("/sys/send.php", s.handleSend)
	r.Get("/sys/status.php", s.handleStatus)
	r.Get("/sys/balance.php", s.handleBalance)
	s.httpServer = httptest.NewServer(r)
	return s
}

// Close shuts the underlying listener down.
func (s *Server) Close() { s.httpServer.Close() }

// BaseURL returns the gateway base URL for smsc.WithBaseURL.
func (s *Server) BaseURL() string { return s.httpServer.URL + "/sys/" }

// Client returns the test server's HTTP client.
func (s *Server) Client() *http.Client { return s.httpServer.Client() }

// Sent returns a copy of every message accepted so far, in order.
func (s *Server) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// SetBalance sets the balance reported by balance.php.
func (s *Server) SetBalance(balance float64, currency string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
	s.currency = currency
}

// SetStatus scripts the delivery status returned for a phone/id pair.
func (s *Server) SetStatus(phone, msgID string, entry StatusEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[phone+"/"+msgID] = entry
}

// FailNext makes the next request answer with the given HTTP status and a
// plain-text body, simulating a transport-level gateway failure.
func (s *Server) FailNext(statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statusCode)
}

func (s *Server) takeFailure() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return 0, false
	}
	code := s.failures[0]
	s.failures = s.failures[1:]
	return code, true
}

// checkRequest handles scripted failures and credential validation.
// It reports whether the handler should continue.
func (s *Server) checkRequest(w http.ResponseWriter, r *http.Request) bool {
	if code, ok := s.takeFailure(); ok {
		w.WriteHeader(code)
		fmt.Fprint(w, "gateway unavailable")
		return false
	}
	q := r.URL.Query()
	if q.Get("fmt") != "3" {
		writeJSON(w, map[string]any{"error": "parameters error", "error_code": 1})
		return false
	}
	if q.Get("login") != s.login || q.Get("psw") != s.password {
		// The real gateway reports bad credentials as a business error
		// inside a 200 reply, not as an HTTP failure.
		writeJSON(w, map[string]any{"error": "wrong login or password", "error_code": 2})
		return false
	}
	return true
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if !s.checkRequest(w, r) {
		return
	}
	q := r.URL.Query()
	text := q.Get("mes")
	phones := splitList(q.Get("phones"))
	if text == "" || len(phones) == 0 {
		writeJSON(w, map[string]any{"error": "parameters error", "error_code": 1})
		return
	}

	parts := (utf8.RuneCountInString(text) + partLength - 1) / partLength
	if parts < 1 {
		parts = 1
	}
	cost := float64(parts*len(phones)) * partCost

	if q.Get("cost") == "1" {
		writeJSON(w, map[string]any{"cnt": parts, "cost": fmt.Sprintf("%.2f", cost)})
		return
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.sent = append(s.sent, SentMessage{
		ID:     id,
		Phones: phones,
		Text:   text,
		Sender: q.Get("sender"),
		Query:  q,
	})
	s.mu.Unlock()

	writeJSON(w, map[string]any{"id": id, "cnt": parts, "cost": fmt.Sprintf("%.2f", cost)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.checkRequest(w, r) {
		return
	}
	q := r.URL.Query()
	phones := splitList(q.Get("phone"))
	ids := splitList(q.Get("id"))
	if len(phones) != len(ids) || len(phones) == 0 {
		writeJSON(w, map[string]any{"error": "parameters error", "error_code": 1})
		return
	}

	list := make([]map[string]any, 0, len(ids))
	for i, msgID := range ids {
		list = append(list, s.statusObject(phones[i], msgID))
	}
	writeJSON(w, list)
}

func (s *Server) statusObject(phone, msgID string) map[string]any {
	s.mu.Lock()
	entry, ok := s.statuses[phone+"/"+msgID]
	s.mu.Unlock()
	if !ok {
		// Unscripted pairs read as delivered just now.
		now := time.Now()
		entry = StatusEntry{Status: 1, StatusName: "Доставлено", SendTime: now, LastTime: now}
	}

	obj := map[string]any{
		"id":             msgID,
		"phone":          phone,
		"status":         entry.Status,
		"status_name":    entry.StatusName,
		"send_timestamp": entry.SendTime.Unix(),
		"last_timestamp": entry.LastTime.Unix(),
		"send_date":      gatewayDate(entry.SendTime),
		"last_date":      gatewayDate(entry.LastTime),
	}
	for name, value := range entry.Extra {
		obj[name] = value
	}
	return obj
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !s.checkRequest(w, r) {
		return
	}
	s.mu.Lock()
	balance, currency := s.balance, s.currency
	s.mu.Unlock()
	// The real gateway types the balance as a string.
	writeJSON(w, map[string]any{"balance": fmt.Sprintf("%.2f", balance), "currency": currency})
}

// splitList undoes the client's list encoding: comma-separated values,
// with a trailing comma for single-element lists.
func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// gatewayDate formats a time the way the gateway does, in Moscow time.
func gatewayDate(t time.Time) string {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return t.In(loc).Format("02.01.2006 15:04:05")
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
