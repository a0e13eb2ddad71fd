// package auth produces the identity context for a chat request from a
// username/password pair. The rest of the system treats the result as an
// opaque bag of fields.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/amitbl/pharmachat/pkg/identity"
	"github.com/amitbl/pharmachat/pkg/store"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password. Callers must not distinguish the two cases to the user.
var ErrInvalidCredentials = errors.New("invalid username or password")

// HashPassword produces a bcrypt hash suitable for storing in users.json.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Login verifies the credentials against the store and builds the identity
// context threaded through tool dispatch.
func Login(s *store.Store, username, password string) (identity.Context, error) {
	u, err := s.UserByUsername(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return identity.Context{
		identity.FieldUserID:       u.ID,
		identity.FieldUsername:     u.Username,
		identity.FieldPasswordHash: u.PasswordHash,
	}, nil
}
