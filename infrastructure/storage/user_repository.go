package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"doc-sync/domain"
	"doc-sync/errors"
)

const (
	userByEmailPrefix = "user:"
	userByIDPrefix    = "userid:"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

// UserRepository stores users under "user:{email}" with a secondary
// "userid:{uuid}" key pointing back to the email, so both lookup directions
// stay single reads.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser persists a new user. The email is the uniqueness anchor.
func (u *UserRepository) CreateUser(_ context.Context, email, passwordHash string) (domain.User, error) {
	user := domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(userByEmailPrefix + email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, data); err != nil {
			return err
		}
		return txn.Set([]byte(userByIDPrefix+user.ID.String()), []byte(email))
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) UserByEmail(_ context.Context, email string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userByEmailPrefix + email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, email)
		}
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) UserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	var email string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userByIDPrefix + id.String()))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			email = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, id)
		}
		return domain.User{}, err
	}
	return u.UserByEmail(ctx, email)
}
