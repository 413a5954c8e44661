// Package session keeps the logged-in identity of each client session in the
// key-value store, under the session's own key prefix.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/kv"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/redisx"
)

const (
	DefaultCustomerName = "New customer"
	DefaultMerchantName = "New merchant"
	DefaultStoreName    = "My local store"
	DefaultOpening      = "08:00"
	DefaultClosing      = "22:00"
	DefaultCurrency     = "€"
)

type Credentials struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      orders.Role `json:"role"`
	StoreName string      `json:"storeName"`
}

type Store struct {
	base   kv.Store
	logger *logrus.Logger
}

func NewStore(base kv.Store, logger *logrus.Logger) *Store {
	return &Store{base: base, logger: logger}
}

func (s *Store) scope(sid string) kv.Store {
	return kv.WithPrefix(s.base, fmt.Sprintf(redisx.KeySessionPrefix, sid))
}

// Current returns the session's user. A corrupt record, including one that
// decodes to a user without an id, is logged, cleared and reported as no user.
func (s *Store) Current(ctx context.Context, sid string) (orders.User, bool, error) {
	var u orders.User
	scoped := s.scope(sid)
	ok, err := kv.GetJSON(ctx, scoped, redisx.KeyCurrentUser, &u)
	if err == nil && ok && u.ID == "" {
		err = fmt.Errorf("%w: key %q: user without id", kv.ErrCorruptState, redisx.KeyCurrentUser)
	}
	if errors.Is(err, kv.ErrCorruptState) {
		s.logger.WithError(err).WithField("session_id", sid).Warn("Discarding corrupt session user")
		if rmErr := scoped.Remove(ctx, redisx.KeyCurrentUser); rmErr != nil {
			return orders.User{}, false, fmt.Errorf("clear session: %w", rmErr)
		}
		return orders.User{}, false, nil
	}
	if err != nil {
		return orders.User{}, false, fmt.Errorf("load session: %w", err)
	}
	return u, ok, nil
}

// Login mints a fresh user from creds and makes it the session's user.
// There is no password check.
func (s *Store) Login(ctx context.Context, sid string, creds Credentials) (orders.User, error) {
	u, err := NewUser(creds)
	if err != nil {
		return orders.User{}, err
	}
	if err := s.Save(ctx, sid, u); err != nil {
		return orders.User{}, err
	}
	return u, nil
}

func (s *Store) Save(ctx context.Context, sid string, u orders.User) error {
	if err := kv.SetJSON(ctx, s.scope(sid), redisx.KeyCurrentUser, u); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) Logout(ctx context.Context, sid string) error {
	if err := s.scope(sid).Remove(ctx, redisx.KeyCurrentUser); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// NewUser builds a user with login defaults applied.
func NewUser(creds Credentials) (orders.User, error) {
	if !creds.Role.Valid() {
		return orders.User{}, orders.Invalid("role", fmt.Sprintf("unknown role %q", creds.Role))
	}
	u := orders.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(creds.Name),
		Email:        strings.TrimSpace(creds.Email),
		Role:         creds.Role,
		IsOpen:       true,
		BasePrepTime: orders.DefaultPrepMinutes,
		OpeningTime:  DefaultOpening,
		ClosingTime:  DefaultClosing,
		Currency:     DefaultCurrency,
	}
	if u.Role == orders.RoleMerchant {
		if u.Name == "" {
			u.Name = DefaultMerchantName
		}
		u.StoreName = strings.TrimSpace(creds.StoreName)
		if u.StoreName == "" {
			u.StoreName = DefaultStoreName
		}
	} else if u.Name == "" {
		u.Name = DefaultCustomerName
	}
	return u, nil
}
