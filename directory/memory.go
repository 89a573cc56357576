package directory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/tokengate"
)

// MemoryDirectory keeps users in a map keyed by email.
type MemoryDirectory struct {
	mu     sync.RWMutex
	users  map[string]tokengate.UserRecord
	nextID int64
	hasher hasher
}

func NewMemoryDirectory(bcryptCost int) *MemoryDirectory {
	return &MemoryDirectory{
		users:  make(map[string]tokengate.UserRecord),
		hasher: newHasher(bcryptCost),
	}
}

func (d *MemoryDirectory) Create(_ context.Context, u NewUser) (tokengate.UserRecord, error) {
	u, err := u.normalized()
	if err != nil {
		return tokengate.UserRecord{}, err
	}
	hash, err := d.hasher.hash(u.Password)
	if err != nil {
		return tokengate.UserRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.Email]; ok {
		return tokengate.UserRecord{}, ErrAlreadyExists
	}
	d.nextID++
	now := time.Now().UTC().Truncate(time.Second)
	rec := tokengate.UserRecord{
		ID:           d.nextID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.users[u.Email] = rec
	return rec, nil
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (tokengate.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[email]
	if !ok {
		return tokengate.UserRecord{}, tokengate.ErrUserNotFound
	}
	return u, nil
}

func (d *MemoryDirectory) VerifyCredential(ctx context.Context, user tokengate.UserRecord, proof string) (bool, error) {
	return verify(ctx, user, proof)
}
