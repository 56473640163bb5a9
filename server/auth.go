package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "crossroads"

// User 账号资料；匿名用户没有邮箱
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email,omitempty"`
	Name        string         `json:"name,omitempty"`
	Anonymous   bool           `json:"anonymous"`
	AnonymousID int            `json:"anonymousId,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// UserStore 账号存储
type UserStore interface {
	FindByEmail(email string) (User, []byte, bool)
	Create(u User, passwordHash []byte) error
}

type storedUser struct {
	user User
	hash []byte
}

// MemoryUserStore 进程内账号表，重启即丢失
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]storedUser
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]storedUser)}
}

func (s *MemoryUserStore) FindByEmail(email string) (User, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[normalizeEmail(email)]
	return rec.user, rec.hash, ok
}

func (s *MemoryUserStore) Create(u User, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(u.Email)
	if _, dup := s.users[key]; dup {
		return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
	}
	s.users[key] = storedUser{user: u, hash: passwordHash}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type identityClaims struct {
	jwt.RegisteredClaims
	User User `json:"user"`
}

// Authenticator 注册/登录并签发 HS256 身份令牌
type Authenticator struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(env ProcessEnv, store UserStore) *Authenticator {
	return &Authenticator{
		store:  store,
		secret: []byte(env.AuthSecret),
		ttl:    env.TokenTTL,
		now:    time.Now,
	}
}

// Register 邮箱密码注册，用户名取邮箱 @ 之前的部分
func (a *Authenticator) Register(email, password string, options map[string]any) (User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, "", fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return User{}, "", fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidCredentials)
	}
	if err != nil {
		return User{}, "", fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:      uuid.NewString(),
		Email:   email,
		Name:    strings.SplitN(email, "@", 2)[0],
		Options: options,
	}
	if err := a.store.Create(u, hash); err != nil {
		return User{}, "", err
	}
	token, err := a.Issue(u)
	if err != nil {
		return User{}, "", err
	}
	Log.Infof("user registered: id=%s email=%s", u.ID, u.Email)
	return u, token, nil
}

// Login 校验密码并签发令牌
func (a *Authenticator) Login(email, password string) (User, string, error) {
	u, hash, ok := a.store.FindByEmail(email)
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}
	token, err := a.Issue(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Anonymous 匿名身份，anonymousId 取 0..1000
func (a *Authenticator) Anonymous(options map[string]any) (User, string, error) {
	u := User{
		ID:          uuid.NewString(),
		Anonymous:   true,
		AnonymousID: rand.IntN(1001),
		Options:     options,
	}
	token, err := a.Issue(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Issue 签发令牌
func (a *Authenticator) Issue(u User) (string, error) {
	now := a.now()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		User: u,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验令牌并取回其中的用户
func (a *Authenticator) Verify(token string) (User, error) {
	if token == "" {
		return User{}, fmt.Errorf("%w: missing", ErrInvalidToken)
	}
	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return User{}, ErrInvalidToken
	}
	return claims.User, nil
}

// VerifyRequest 从 ?token= 或 Authorization: Bearer 取令牌
func (a *Authenticator) VerifyRequest(r *http.Request) (User, error) {
	return a.Verify(requestToken(r))
}

func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type credentialsRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Options  map[string]any `json:"options,omitempty"`
}

type authResponse struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}

// HandleRegister POST /auth/register
func (a *Authenticator) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	u, token, err := a.Register(body.Email, body.Password, body.Options)
	switch {
	case errors.Is(err, ErrUserExists):
		http.Error(w, "email already registered", http.StatusConflict)
		return
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		Log.Errorf("register: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// HandleLogin POST /auth/login
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	u, token, err := a.Login(body.Email, body.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		Log.Errorf("login: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// HandleAnonymous POST /auth/anonymous，请求体可以为空
func (a *Authenticator) HandleAnonymous(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Options map[string]any `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	u, token, err := a.Anonymous(body.Options)
	if err != nil {
		Log.Errorf("anonymous: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// HandleUserData GET /auth/userdata
func (a *Authenticator) HandleUserData(w http.ResponseWriter, r *http.Request) {
	u, err := a.VerifyRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
