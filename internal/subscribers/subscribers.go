// Package subscribers manages the users.json document: phone numbers, their
// notification preference and the product keys they follow.
package subscribers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
)

// maxNameLen is the maximum stored name length in runes.
const maxNameLen = 50

var (
	// ErrNotFound is returned when no subscriber has the phone number.
	ErrNotFound = errors.New("subscriber not found")
	// ErrExists is returned when adding a phone number twice.
	ErrExists = errors.New("subscriber already exists")
	// ErrInvalidPhone is returned for numbers NormalizePhone rejects.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// Subscriber is one entry in users.json.
type Subscriber struct {
	Phone                string   `json:"phone"`
	Name                 string   `json:"name,omitempty"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
	Subscriptions        []string `json:"subscriptions"`
	InvitedBy            string   `json:"invited_by,omitempty"`
}

// UnmarshalJSON defaults NotificationsEnabled to true when absent.
func (s *Subscriber) UnmarshalJSON(data []byte) error {
	type plain Subscriber
	p := plain{NotificationsEnabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Subscriber(p)
	return nil
}

// Subscribed reports whether the subscriber follows key.
func (s *Subscriber) Subscribed(key string) bool {
	return slices.Contains(s.Subscriptions, key)
}

// Store is the subscriber document.
type Store struct {
	docs *jsonstore.Store[[]Subscriber]
	log  *slog.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	log       *slog.Logger
	storeOpts []jsonstore.Option
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) {
		o.log = l
	}
}

// WithStoreOptions passes options to the underlying document store.
func WithStoreOptions(opts ...jsonstore.Option) Option {
	return func(o *storeOptions) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// New opens the subscriber document at path.
func New(path string, opts ...Option) *Store {
	o := storeOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		docs: jsonstore.New(path, func() []Subscriber { return []Subscriber{} }, o.storeOpts...),
		log:  o.log,
	}
}

// List returns a private copy of every subscriber.
func (s *Store) List() ([]Subscriber, error) {
	users, err := s.docs.Read()
	if err != nil {
		return nil, fmt.Errorf("reading subscribers: %w", err)
	}
	return users, nil
}

// Find looks up a subscriber by phone number.
func (s *Store) Find(phone string) (Subscriber, error) {
	users, err := s.docs.Snapshot()
	if err != nil {
		return Subscriber{}, fmt.Errorf("reading subscribers: %w", err)
	}
	for _, u := range users {
		if u.Phone == phone {
			u.Subscriptions = slices.Clone(u.Subscriptions)
			return u, nil
		}
	}
	return Subscriber{}, ErrNotFound
}

// Update runs fn on the subscriber list inside one locked transaction.
func (s *Store) Update(fn func(users *[]Subscriber) error) error {
	return s.docs.Update(fn)
}

// Add registers a new subscriber with notifications enabled.
func (s *Store) Add(rawPhone, name, invitedBy string) (Subscriber, error) {
	phone, ok := NormalizePhone(rawPhone)
	if !ok {
		return Subscriber{}, fmt.Errorf("%w: %q", ErrInvalidPhone, rawPhone)
	}

	sub := Subscriber{
		Phone:                phone,
		Name:                 cleanName(name),
		NotificationsEnabled: true,
		Subscriptions:        []string{},
		InvitedBy:            invitedBy,
	}

	err := s.docs.Update(func(users *[]Subscriber) error {
		if slices.ContainsFunc(*users, func(u Subscriber) bool { return u.Phone == phone }) {
			return ErrExists
		}
		*users = append(*users, sub)
		return nil
	})
	if err != nil {
		return Subscriber{}, fmt.Errorf("adding subscriber %s: %w", MaskPhone(phone), err)
	}

	s.log.Info("added subscriber", "phone", MaskPhone(phone))
	return sub, nil
}

// Remove deletes a subscriber.
func (s *Store) Remove(phone string) error {
	err := s.docs.Update(func(users *[]Subscriber) error {
		before := len(*users)
		*users = slices.DeleteFunc(*users, func(u Subscriber) bool { return u.Phone == phone })
		if len(*users) == before {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("removing subscriber %s: %w", MaskPhone(phone), err)
	}
	s.log.Info("removed subscriber", "phone", MaskPhone(phone))
	return nil
}

// Rename changes a subscriber's display name.
func (s *Store) Rename(phone, name string) error {
	return s.modify(phone, func(u *Subscriber) {
		u.Name = cleanName(name)
	})
}

// Subscribe adds key to the subscriber's subscriptions. It reports whether
// the set changed.
func (s *Store) Subscribe(phone, key string) (bool, error) {
	changed := false
	err := s.modify(phone, func(u *Subscriber) {
		if !u.Subscribed(key) {
			u.Subscriptions = append(u.Subscriptions, key)
			changed = true
		}
	})
	return changed, err
}

// Unsubscribe removes key from the subscriber's subscriptions. It reports
// whether the set changed.
func (s *Store) Unsubscribe(phone, key string) (bool, error) {
	changed := false
	err := s.modify(phone, func(u *Subscriber) {
		before := len(u.Subscriptions)
		u.Subscriptions = slices.DeleteFunc(u.Subscriptions, func(k string) bool { return k == key })
		changed = len(u.Subscriptions) != before
	})
	return changed, err
}

// SetNotifications turns notifications on or off for a subscriber.
func (s *Store) SetNotifications(phone string, enabled bool) error {
	return s.modify(phone, func(u *Subscriber) {
		u.NotificationsEnabled = enabled
	})
}

// RemoveSubscriptions removes keys from several subscribers in a single
// locked pass. It returns how many subscriptions were removed per phone;
// phones without matches are absent from the result.
func (s *Store) RemoveSubscriptions(removals map[string][]string) (map[string]int, error) {
	if len(removals) == 0 {
		return nil, nil
	}

	removed := make(map[string]int)
	err := s.docs.Update(func(users *[]Subscriber) error {
		for i := range *users {
			u := &(*users)[i]
			keys, ok := removals[u.Phone]
			if !ok {
				continue
			}
			before := len(u.Subscriptions)
			u.Subscriptions = slices.DeleteFunc(u.Subscriptions, func(k string) bool {
				return slices.Contains(keys, k)
			})
			if n := before - len(u.Subscriptions); n > 0 {
				removed[u.Phone] += n
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("removing subscriptions: %w", err)
	}
	return removed, nil
}

func (s *Store) modify(phone string, fn func(u *Subscriber)) error {
	err := s.docs.Update(func(users *[]Subscriber) error {
		for i := range *users {
			if (*users)[i].Phone == phone {
				fn(&(*users)[i])
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return fmt.Errorf("updating subscriber %s: %w", MaskPhone(phone), err)
	}
	return nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= maxNameLen {
		return name
	}
	return string([]rune(name)[:maxNameLen])
}
