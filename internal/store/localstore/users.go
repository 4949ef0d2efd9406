package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nattw/visionchat/internal/models"
)

func userKey(email string) string { return "user_" + email }

// SaveUser stores a profile under its email.
func (s *Store) SaveUser(ctx context.Context, u *models.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.Set(ctx, userKey(u.Email), string(b))
}

// GetUserByEmail returns the stored profile, or ok=false when none.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	raw, ok, err := s.Get(ctx, userKey(email))
	if err != nil || !ok {
		return nil, false, err
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false, fmt.Errorf("decode user: %w", err)
	}
	return &u, true, nil
}
