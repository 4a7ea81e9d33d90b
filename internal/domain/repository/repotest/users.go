// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"sort"
	"sync"

	"usersvc/internal/common"
	"usersvc/internal/domain/model"
	"usersvc/internal/domain/repository"
)

var _ repository.UserRepository = (*Users)(nil)

// Users is an in-memory UserRepository with the same uniqueness rules as
// the users table. Setting Err makes every call fail with it.
type Users struct {
	mu     sync.Mutex
	nextID int64
	rows   []model.User
	Err    error
}

func NewUsers() *Users {
	return &Users{nextID: 1}
}

func (u *Users) Create(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return u.Err
	}
	for _, row := range u.rows {
		if row.Email == user.Email {
			return common.ErrDuplicateEmail
		}
		if row.Username == user.Username {
			return common.ErrDuplicateUsername
		}
	}
	user.ID = u.nextID
	u.nextID++
	u.rows = append(u.rows, *user)
	return nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return u.find(func(row model.User) bool { return row.Email == email })
}

func (u *Users) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return u.find(func(row model.User) bool { return row.Username == username })
}

func (u *Users) FindByID(_ context.Context, id int64) (*model.User, error) {
	return u.find(func(row model.User) bool { return row.ID == id })
}

func (u *Users) List(_ context.Context) ([]model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	out := append([]model.User(nil), u.rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes the user with id, mimicking an out-of-band deletion.
func (u *Users) Delete(id int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, row := range u.rows {
		if row.ID == id {
			u.rows = append(u.rows[:i], u.rows[i+1:]...)
			return
		}
	}
}

func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rows)
}

func (u *Users) find(match func(model.User) bool) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	for _, row := range u.rows {
		if match(row) {
			found := row
			return &found, nil
		}
	}
	return nil, common.ErrUserNotFound
}
