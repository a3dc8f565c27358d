package voting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionCookieName = "coopvote.sid"
	sessionPrefix     = "voting:"
	sessionMaxAge     = 2 * time.Hour

	// VerifiedTTL bounds how long a passed identity check stays usable. The
	// controller enforces it on every gated access; the store does not.
	VerifiedTTL = 30 * time.Minute
)

// Terminal outcomes a session can land in.
const (
	OutcomeAlreadyVoted = "already_voted"
	OutcomeNotQualified = "not_qualified"
)

// Session is the per-voter flow state, stored server-side as one JSON blob
// keyed by an opaque token. It holds only pointers into the database plus the
// verified/submitted flags; nothing in it is shared across voters.
type Session struct {
	BranchID       uint      `json:"branch_id,omitempty"`
	BranchNumber   string    `json:"branch_number,omitempty"`
	MemberID       uint      `json:"member_id,omitempty"`
	MemberCode     string    `json:"member_code,omitempty"`
	Verified       bool      `json:"verified,omitempty"`
	VerifiedAt     time.Time `json:"verified_at,omitempty"`
	InfoUpdated    bool      `json:"info_updated,omitempty"`
	ControlNumber  int       `json:"control_number,omitempty"`
	VotesSubmitted bool      `json:"votes_submitted,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	OutcomeReason  string    `json:"outcome_reason,omitempty"`
}

// VerifiedLive reports whether the identity check passed and has not expired.
func (s *Session) VerifiedLive(now time.Time) bool {
	return s.Verified && now.Sub(s.VerifiedAt) <= VerifiedTTL
}

// Terminate clears the flow state, keeping only the terminal outcome so the
// already-voted / not-qualified screens can still render it.
func (s *Session) Terminate(outcome, reason string) {
	*s = Session{Outcome: outcome, OutcomeReason: reason}
}

// Store keeps sessions in Redis, one JSON blob per token, same shape the
// session middleware reads back.
type Store struct {
	Rdb *redis.Client
}

func (st *Store) key(token string) string {
	return sessionPrefix + token
}

// Get returns the session for token, or nil if none exists.
func (st *Store) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	b, err := st.Rdb.Get(ctx, st.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (st *Store) Save(ctx context.Context, token string, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return st.Rdb.Set(ctx, st.key(token), b, sessionMaxAge).Err()
}

func (st *Store) Delete(ctx context.Context, token string) error {
	return st.Rdb.Del(ctx, st.key(token)).Err()
}

const (
	sessionLocal   = "voting_session"
	tokenLocal     = "voting_token"
	destroyedLocal = "voting_destroyed"
)

// SessionMiddleware loads the voter's session from the cookie before the
// handler runs and persists any mutation after it returns, unless the handler
// destroyed the session.
func SessionMiddleware(store *Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(sessionCookieName)
		sess, err := store.Get(c.Context(), token)
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
		}
		if sess != nil {
			c.Locals(sessionLocal, sess)
			c.Locals(tokenLocal, token)
		}

		if err := c.Next(); err != nil {
			return err
		}

		if destroyed, _ := c.Locals(destroyedLocal).(bool); destroyed {
			return nil
		}
		if tok, _ := c.Locals(tokenLocal).(string); tok != "" {
			if s, _ := c.Locals(sessionLocal).(*Session); s != nil {
				if err := store.Save(c.Context(), tok, s); err != nil {
					return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
				}
			}
		}
		return nil
	}
}

// CurrentSession returns the loaded session, or nil when the request carries
// no live session.
func CurrentSession(c *fiber.Ctx) *Session {
	s, _ := c.Locals(sessionLocal).(*Session)
	return s
}

// BeginSession issues a fresh token and empty session, replacing whatever the
// request carried. Called on branch selection, the flow's entry point.
func BeginSession(c *fiber.Ctx) *Session {
	token := uuid.New().String()
	sess := &Session{}
	c.Locals(tokenLocal, token)
	c.Locals(sessionLocal, sess)
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return sess
}

// DestroySession removes the session from the store and expires the cookie.
func DestroySession(c *fiber.Ctx, store *Store) {
	if token, _ := c.Locals(tokenLocal).(string); token != "" {
		_ = store.Delete(c.Context(), token)
	}
	c.Locals(destroyedLocal, true)
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}
