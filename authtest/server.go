// Package authtest runs an in-process stand-in for the GoTrue auth server.
// It signs RS256 access tokens, serves their JWKS, and implements the token,
// user, logout, admin and identity-link endpoints the app calls, so handlers
// and the callback router can be exercised without a real project.
//
// Example usage:
//
//	srv := authtest.NewServer()
//	defer srv.Close()
//
//	client, _ := gotrue.NewClient(srv.Config())
//	code := srv.IssueCode(userID, verifier)
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/PaulFidika/membergate/gotrue"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const keyID = "test-key-1"

type grant struct {
	userID   uuid.UUID
	verifier string
}

// Server is a fake auth server backed by an httptest.Server.
type Server struct {
	server     *httptest.Server
	key        *rsa.PrivateKey
	ServiceKey string
	TTL        time.Duration

	mu        sync.Mutex
	users     map[uuid.UUID]gotrue.User
	codes     map[string]grant
	refresh   map[string]uuid.UUID
	revoked   map[string]bool
	confirmed map[uuid.UUID]bool
	calls     map[string]int
}

func NewServer() *Server {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("failed to create RSA key: " + err.Error())
	}
	s := &Server{
		key:        k,
		ServiceKey: "service-role-key",
		TTL:        time.Hour,
		users:      map[uuid.UUID]gotrue.User{},
		codes:      map[string]grant{},
		refresh:    map[string]uuid.UUID{},
		revoked:    map[string]bool{},
		confirmed:  map[uuid.UUID]bool{},
		calls:      map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/.well-known/jwks.json", s.handleJWKS)
	mux.HandleFunc("/auth/v1/token", s.handleToken)
	mux.HandleFunc("/auth/v1/user", s.handleUser)
	mux.HandleFunc("/auth/v1/logout", s.handleLogout)
	mux.HandleFunc("/auth/v1/admin/users/", s.handleAdminUser)
	mux.HandleFunc("/auth/v1/user/identities/authorize", s.handleLink)
	s.server = httptest.NewServer(mux)
	return s
}

func (s *Server) URL() string    { return s.server.URL }
func (s *Server) Issuer() string { return s.server.URL + "/auth/v1" }
func (s *Server) Close()         { s.server.Close() }

// Config returns a client configuration pointed at this server.
func (s *Server) Config() gotrue.Config {
	return gotrue.Config{
		URL:            s.server.URL,
		AnonKey:        "anon-key",
		ServiceRoleKey: s.ServiceKey,
		Accept: gotrue.AcceptConfig{
			Issuer:  s.Issuer(),
			JWKSURL: s.Issuer() + "/.well-known/jwks.json",
		},
	}
}

// AddUser registers u; a zero ID is replaced with a fresh one.
func (s *Server) AddUser(u gotrue.User) gotrue.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

// IssueCode returns a one-time PKCE code for userID bound to verifier.
// An empty verifier accepts any.
func (s *Server) IssueCode(userID uuid.UUID, verifier string) string {
	code := uuid.NewString()
	s.mu.Lock()
	s.codes[code] = grant{userID: userID, verifier: verifier}
	s.mu.Unlock()
	return code
}

// Confirmed reports whether the admin confirm endpoint was called for id.
func (s *Server) Confirmed(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed[id]
}

// Calls reports how many requests hit path (without the /auth/v1 prefix).
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// CreateToken signs an access token for userID expiring after ttl.
func (s *Server) CreateToken(userID uuid.UUID, email string, ttl time.Duration) string {
	now := time.Now()
	claims := gojwt.MapClaims{
		"sub":        userID.String(),
		"email":      email,
		"iss":        s.Issuer(),
		"aud":        "authenticated",
		"role":       "authenticated",
		"session_id": uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	out, err := tok.SignedString(s.key)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return out
}

// CreateExpiredToken signs a token that expired an hour ago.
func (s *Server) CreateExpiredToken(userID uuid.UUID, email string) string {
	return s.CreateToken(userID, email, -time.Hour)
}

// NewRefreshToken registers a refresh token for userID.
func (s *Server) NewRefreshToken(userID uuid.UUID) string {
	rt := "rt-" + uuid.NewString()
	s.mu.Lock()
	s.refresh[rt] = userID
	s.mu.Unlock()
	return rt
}

func (s *Server) count(r *http.Request) {
	s.mu.Lock()
	s.calls[strings.TrimPrefix(r.URL.Path, "/auth/v1")]++
	s.mu.Unlock()
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	key, err := jwk.FromRaw(&s.key.PublicKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = key.Set(jwk.KeyIDKey, keyID)
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256)
	_ = key.Set(jwk.KeyUsageKey, "sig")
	set := jwk.NewSet()
	_ = set.AddKey(key)
	b, _ := json.Marshal(set)
	sum := sha256.Sum256(b)
	etag := "\"" + hex.EncodeToString(sum[:]) + "\""
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(b)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}
	var body struct {
		AuthCode     string `json:"auth_code"`
		CodeVerifier string `json:"code_verifier"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	var userID uuid.UUID
	switch r.URL.Query().Get("grant_type") {
	case "pkce":
		s.mu.Lock()
		g, ok := s.codes[body.AuthCode]
		delete(s.codes, body.AuthCode)
		s.mu.Unlock()
		if !ok {
			writeErr(w, http.StatusNotFound, "flow_state_not_found", "invalid flow state, no valid flow state found")
			return
		}
		if g.verifier != "" && g.verifier != body.CodeVerifier {
			writeErr(w, http.StatusBadRequest, "bad_code_verifier", "code challenge does not match previously saved code verifier")
			return
		}
		userID = g.userID
	case "refresh_token":
		s.mu.Lock()
		id, ok := s.refresh[body.RefreshToken]
		delete(s.refresh, body.RefreshToken)
		s.mu.Unlock()
		if !ok {
			writeErr(w, http.StatusBadRequest, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found")
			return
		}
		userID = id
	default:
		writeErr(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant_type")
		return
	}
	s.mu.Lock()
	u, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	ttl := s.TTL
	sess := gotrue.Session{
		AccessToken:  s.CreateToken(u.ID, u.Email, ttl),
		RefreshToken: s.NewRefreshToken(u.ID),
		TokenType:    "bearer",
		ExpiresIn:    int64(ttl / time.Second),
		ExpiresAt:    time.Now().Add(ttl).Unix(),
		User:         &u,
	}
	writeJSON(w, http.StatusOK, sess)
}

// bearerUser validates the bearer token against our own key.
func (s *Server) bearerUser(r *http.Request) (gotrue.User, string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	tok, err := gojwt.Parse(raw, func(*gojwt.Token) (any, error) { return &s.key.PublicKey, nil },
		gojwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		return gotrue.User{}, raw, false
	}
	sub, _ := tok.Claims.GetSubject()
	id, err := uuid.Parse(sub)
	if err != nil {
		return gotrue.User{}, raw, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[raw] {
		return gotrue.User{}, raw, false
	}
	u, ok := s.users[id]
	return u, raw, ok
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	u, _, ok := s.bearerUser(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	_, raw, ok := s.bearerUser(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}
	s.mu.Lock()
	s.revoked[raw] = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	if r.Header.Get("Authorization") != "Bearer "+s.ServiceKey {
		writeErr(w, http.StatusForbidden, "not_admin", "User not allowed")
		return
	}
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/auth/v1/admin/users/"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	var body struct {
		EmailConfirm bool `json:"email_confirm"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	u, ok := s.users[id]
	if ok && body.EmailConfirm {
		s.confirmed[id] = true
	}
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	s.count(r)
	if _, _, ok := s.bearerUser(r); !ok {
		writeErr(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT")
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("https://%s.example.test/oauth?redirect_to=%s", q.Get("provider"), q.Get("redirect_to")),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "error_code": code, "msg": msg})
}
