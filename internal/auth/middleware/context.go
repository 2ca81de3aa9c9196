package auth

import "context"

type ctxKey string

const (
	ctxKeySession ctxKey = "session"
	ctxKeyUser    ctxKey = "user"
)

type Session struct {
	Key    string
	UserID int64
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

func SessionFromContext(ctx context.Context) Session {
	if v := ctx.Value(ctxKeySession); v != nil {
		if s, ok := v.(Session); ok {
			return s
		}
	}
	return Session{}
}

// SessionKey is the opaque key quiz attempts are tracked by.
func SessionKey(ctx context.Context) string { return SessionFromContext(ctx).Key }

// Principal is the logged-in account attached by AttachRole.
type Principal struct {
	ID       int64
	Username string
	Role     string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyUser, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyUser).(Principal)
	return p, ok
}
