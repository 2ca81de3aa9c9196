package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionService signs the session cookie. The cookie carries the anonymous
// session key used to track quiz attempts and, once logged in, the user id.
type SessionService struct {
	hmac   []byte
	cookie string
	ttl    time.Duration
	secure bool
}

func NewSessionService(secret, cookieName string, ttl time.Duration, secure bool) *SessionService {
	if cookieName == "" {
		cookieName = "testme_session"
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &SessionService{hmac: []byte(secret), cookie: cookieName, ttl: ttl, secure: secure}
}

type Claims struct {
	SessionKey string `json:"sk"`
	UserID     int64  `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

func (a *SessionService) CookieName() string { return a.cookie }

func (a *SessionService) Issue(s Session) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionKey: s.Key,
		UserID:     s.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "testme",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *SessionService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.SessionKey == "" {
		return nil, errors.New("invalid session token")
	}
	return c, nil
}

// NewSessionKey returns a fresh opaque session key.
func NewSessionKey() string { return uuid.NewString() }

// Save writes s as the session cookie.
func (a *SessionService) Save(w http.ResponseWriter, s Session) error {
	tok, err := a.Issue(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(a.ttl),
	})
	return nil
}

// Login binds userID to the current session key, so attempts started
// anonymously stay with the browser.
func (a *SessionService) Login(w http.ResponseWriter, r *http.Request, userID int64) (Session, error) {
	s := SessionFromContext(r.Context())
	if s.Key == "" {
		s.Key = NewSessionKey()
	}
	s.UserID = userID
	return s, a.Save(w, s)
}

// Logout drops the user and starts over with a new session key.
func (a *SessionService) Logout(w http.ResponseWriter) (Session, error) {
	s := Session{Key: NewSessionKey()}
	return s, a.Save(w, s)
}

// Middleware loads the session from the cookie, issuing a new one when the
// cookie is missing or fails verification.
func (a *SessionService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s Session
		if c, err := r.Cookie(a.cookie); err == nil && c.Value != "" {
			if claims, err := a.Parse(c.Value); err == nil {
				s = Session{Key: claims.SessionKey, UserID: claims.UserID}
				if claims.IssuedAt != nil && time.Since(claims.IssuedAt.Time) > a.ttl/2 {
					_ = a.Save(w, s)
				}
			}
		}
		if s.Key == "" {
			s = Session{Key: NewSessionKey()}
			if err := a.Save(w, s); err != nil {
				http.Error(w, "session", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
