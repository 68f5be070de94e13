package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

type User struct {
	ID               string    `json:"id"`
	Hash             string    `json:"-"`
	FamilyName       string    `json:"family_name"`
	GivenName        string    `json:"given_name"`
	BirthDate        string    `json:"birth_date"`
	IssuingCountry   string    `json:"issuing_country"`
	IssuingAuthority string    `json:"issuing_authority,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserRepository stores users. Find methods return a CodeUserNotFound error
// when nothing matches.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByHash(ctx context.Context, hash string) (*User, error)
	Save(ctx context.Context, user *User) (*User, error)
}

// MemoryUsers is an in-process UserRepository.
type MemoryUsers struct {
	mu     sync.RWMutex
	users  map[string]*User
	byHash map[string]string
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		users:  make(map[string]*User),
		byHash: make(map[string]string),
	}
}

func (m *MemoryUsers) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, signererr.New(signererr.CodeUserNotFound, "user not found")
	}
	u := *user
	return &u, nil
}

func (m *MemoryUsers) FindByHash(_ context.Context, hash string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[hash]
	if !ok {
		return nil, signererr.New(signererr.CodeUserNotFound, "user not found")
	}
	u := *m.users[id]
	return &u, nil
}

// Save assigns an ID to new users. A second user with an existing hash gets
// the stored user back instead of a duplicate.
func (m *MemoryUsers) Save(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byHash[user.Hash]; ok && id != user.ID {
		u := *m.users[id]
		return &u, nil
	}

	u := *user
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if old, ok := m.users[u.ID]; ok && old.Hash != u.Hash {
		delete(m.byHash, old.Hash)
	}
	m.users[u.ID] = &u
	m.byHash[u.Hash] = u.ID

	saved := u
	return &saved, nil
}

type Binder struct {
	users UserRepository
}

func NewBinder(users UserRepository) *Binder {
	return &Binder{users: users}
}

// BindOrCreateUser returns the user whose hash matches id, creating one on
// first sight. created reports which happened.
func (b *Binder) BindOrCreateUser(ctx context.Context, id *VerifiedIdentity) (user *User, created bool, err error) {
	user, err = b.users.FindByHash(ctx, id.Hash)
	if err == nil {
		return user, false, nil
	}
	if !signererr.HasCode(err, signererr.CodeUserNotFound) {
		return nil, false, err
	}

	user, err = b.users.Save(ctx, &User{
		Hash:             id.Hash,
		FamilyName:       id.FamilyName,
		GivenName:        id.GivenName,
		BirthDate:        id.BirthDate,
		IssuingCountry:   id.IssuingCountry,
		IssuingAuthority: id.IssuingAuthority,
	})
	if err != nil {
		return nil, false, signererr.Wrap(err, signererr.CodeUnexpected, "failed to save user")
	}
	return user, true, nil
}
