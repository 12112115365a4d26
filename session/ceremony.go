package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

// Ceremony tells the three webauthn flows apart in the key space.
type Ceremony string

const (
	Registration Ceremony = "reg"     // keyed by username
	Enrollment   Ceremony = "reg:inv" // keyed by invite token
	Login        Ceremony = "auth"    // keyed by a random ceremony id
)

// ErrNoCeremony means the ceremony expired or was already used.
var ErrNoCeremony = errors.New("webauthn ceremony not found or expired")

// Store holds webauthn SessionData between the begin and finish calls.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

func ceremonyKey(c Ceremony, id string) string { return fmt.Sprintf("alf:webauthn:%s:%s", c, id) }

func (s *Store) Save(ctx context.Context, c Ceremony, id string, sd *webauthn.SessionData) error {
	b, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, ceremonyKey(c, id), b, s.ttl).Err()
}

// Take loads and deletes the ceremony in one step, so a challenge can be answered only once.
func (s *Store) Take(ctx context.Context, c Ceremony, id string) (*webauthn.SessionData, error) {
	b, err := s.rdb.GetDel(ctx, ceremonyKey(c, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoCeremony
	}
	if err != nil {
		return nil, err
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}
