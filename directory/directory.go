package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/tokengate"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAlreadyExists is returned by Create when the email is taken.
	ErrAlreadyExists = errors.New("user with this email already exists")
	// ErrInvalidUser is returned by Create when a required field is empty.
	ErrInvalidUser = errors.New("name, email, and password are required")
)

// NewUser is a registration request.
type NewUser struct {
	Name     string
	Email    string
	Password string
}

func (u NewUser) normalized() (NewUser, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.Name == "" || u.Email == "" || u.Password == "" {
		return u, ErrInvalidUser
	}
	return u, nil
}

// hasher hashes and checks bcrypt passwords at a fixed cost.
type hasher struct {
	cost int
}

func newHasher(cost int) hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return hasher{cost: cost}
}

func (h hasher) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// verify reports a mismatch as (false, nil); any other bcrypt failure, such as
// a corrupt stored hash, is returned as an error.
func verify(_ context.Context, user tokengate.UserRecord, proof string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(proof))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
