// Package kartexauth authenticates REST and WebSocket requests against a
// static API key list or a username/password login that issues a JWT,
// mirroring the original server's dual accepted-credential scheme.
package kartexauth

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login when the username is unknown
// or the password does not match.
var ErrInvalidCredentials = errors.New("kartexauth: invalid username or password")

// ErrUnauthorized is returned by Authenticate when neither an API key nor
// a valid bearer token was presented.
var ErrUnauthorized = errors.New("kartexauth: missing or invalid bearer credentials")

// User is one statically configured login identity. Password may be a
// bcrypt hash (starting with "$2") or, for convenience in local/dev
// configs, a plaintext value compared directly — matching the original
// server's dual check.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Config controls the set of accepted API keys, the static user list for
// password login, and JWT issuance.
type Config struct {
	APIKeys   []string      `yaml:"api_keys"`
	Users     []User        `yaml:"users"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// RegisterFlagsAndApplyDefaults wires flags under prefix. API keys and
// users are config-file-only (no sane single-flag encoding), matching the
// rest of the Config tree's convention that list/slice fields are left to
// YAML.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.JWTSecret, prefix+"jwt-secret", "", "HMAC secret used to sign and verify session JWTs.")
	f.DurationVar(&c.TokenTTL, prefix+"token-ttl", 24*time.Hour, "Lifetime of a JWT issued at login.")
}

// Claims is the JWT payload: subject (username) and role, alongside the
// registered exp/iat fields.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// contextKey avoids collisions with other packages' context values.
type contextKey int

const principalKey contextKey = iota

// Principal identifies the caller an incoming request authenticated as.
// APIKey requests have no username/role.
type Principal struct {
	Username string
	Role     string
	APIKey   bool
}

// Authenticator validates API keys and issues/verifies JWTs.
type Authenticator struct {
	cfg Config
}

// New builds an Authenticator from cfg.
func New(cfg Config) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Login checks username/password against the configured user list and, on
// success, issues a signed JWT valid for cfg.TokenTTL.
func (a *Authenticator) Login(username, password string) (string, User, error) {
	for _, u := range a.cfg.Users {
		if u.Username != username {
			continue
		}
		if !passwordMatches(u.Password, password) {
			return "", User{}, ErrInvalidCredentials
		}

		ttl := a.cfg.TokenTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		now := time.Now()
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   u.Username,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
			Role: u.Role,
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(a.cfg.JWTSecret))
		if err != nil {
			return "", User{}, err
		}
		return signed, u, nil
	}
	return "", User{}, ErrInvalidCredentials
}

func passwordMatches(stored, candidate string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
	}
	return stored == candidate
}

// Authenticate validates the bearer credential on r: either a literal
// configured API key or a JWT signed with cfg.JWTSecret. It returns the
// resolved Principal on success.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return Principal{}, ErrUnauthorized
	}

	for _, key := range a.cfg.APIKeys {
		if key != "" && token == key {
			return Principal{APIKey: true}, nil
		}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("kartexauth: unexpected signing method")
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthorized
	}

	return Principal{Username: claims.Subject, Role: claims.Role}, nil
}

// Middleware rejects any request that doesn't carry a valid API key or
// JWT, and stashes the resolved Principal in the request context for
// downstream handlers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext retrieves the Principal stashed by Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
