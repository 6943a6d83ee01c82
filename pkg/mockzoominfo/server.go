package mockzoominfo

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// DefaultToken is the JWT issued by /authenticate unless overridden.
const DefaultToken = "mock-jwt-token"

// Call records a request made to the mock service.
type Call struct {
	Method      string
	Path        string
	CompanyName string
	UserAgent   string
}

// Company is a search candidate as served on the wire. Keys follow the API's JSON names.
type Company map[string]any

// Server implements a minimal company-data API surface: /authenticate and /search/company.
type Server struct {
	mu    sync.Mutex
	calls []Call

	clientID   string
	privateKey string
	token      string
	authStatus int

	companies    map[string][]Company
	defaultMatch []Company
	failures     map[string]int

	// searchesBeforeExpiry is the number of searches served before the token starts
	// returning 401. Negative disables expiry.
	searchesBeforeExpiry int
	searches             int
}

// New constructs a mock server that accepts any credentials and knows no companies.
func New() *Server {
	return &Server{
		token:                DefaultToken,
		companies:            make(map[string][]Company),
		failures:             make(map[string]int),
		searchesBeforeExpiry: -1,
	}
}

// RequireCredentials enforces that /authenticate receives exactly these values.
// Empty values disable enforcement.
func (s *Server) RequireCredentials(clientID, privateKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = strings.TrimSpace(clientID)
	s.privateKey = strings.TrimSpace(privateKey)
}

// IssueToken overrides the JWT returned by /authenticate. An empty token makes the
// response omit the jwt field.
func (s *Server) IssueToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailAuthentication makes /authenticate answer with status. 0 restores normal behaviour.
func (s *Server) FailAuthentication(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authStatus = status
}

// AddCompany registers candidates returned for an exact (case-insensitive) name query.
func (s *Server) AddCompany(name string, matches ...Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[companyKey(name)] = append(s.companies[companyKey(name)], matches...)
}

// MatchAll makes every query without a registered entry return matches.
func (s *Server) MatchAll(matches ...Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultMatch = append([]Company(nil), matches...)
}

// FailCompany makes searches for name answer with status.
func (s *Server) FailCompany(name string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[companyKey(name)] = status
}

// ExpireTokenAfter makes every search after the first n answer 401.
func (s *Server) ExpireTokenAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchesBeforeExpiry = n
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/authenticate", s.handleAuthenticate)
	mux.HandleFunc("/search/company", s.handleSearch)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// SearchCalls returns the company names queried, in order.
func (s *Server) SearchCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Path == "/search/company" {
			out = append(out, c.CompanyName)
		}
	}
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{
		Method:      r.Method,
		Path:        r.URL.Path,
		CompanyName: r.URL.Query().Get("companyName"),
		UserAgent:   r.UserAgent(),
	})
}

type authReq struct {
	ClientID   string `json:"clientId"`
	PrivateKey string `json:"privateKey"`
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req authReq
	if err := json.Unmarshal(b, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	s.mu.Lock()
	status := s.authStatus
	wantID, wantKey := s.clientID, s.privateKey
	token := s.token
	s.mu.Unlock()

	if status != 0 {
		writeError(w, status, "authentication unavailable")
		return
	}
	if (wantID != "" && req.ClientID != wantID) || (wantKey != "" && req.PrivateKey != wantKey) {
		writeError(w, http.StatusUnauthorized, "invalid client credentials")
		return
	}

	resp := map[string]any{}
	if token != "" {
		resp["jwt"] = token
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("companyName")
	key := companyKey(name)

	s.mu.Lock()
	expected := "Bearer " + s.token
	s.searches++
	expired := s.searchesBeforeExpiry >= 0 && s.searches > s.searchesBeforeExpiry
	failStatus := s.failures[key]
	matches, ok := s.companies[key]
	if !ok {
		matches = s.defaultMatch
	}
	s.mu.Unlock()

	if r.Header.Get("Authorization") != expected || expired {
		writeError(w, http.StatusUnauthorized, "token expired or invalid")
		return
	}
	if failStatus != 0 {
		writeError(w, failStatus, "lookup failed")
		return
	}
	if matches == nil {
		matches = []Company{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": matches})
}

func companyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
