package memory

import (
	"slices"

	"github.com/adwski/chatapp/backend/model"
)

// Registry maps user ids to live connections.
// It is not safe for concurrent use: a single owner serializes all calls.
type Registry struct {
	users []model.ActiveUser
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds userID bound to connID unless userID is already present,
// in which case the existing entry is kept as is. It returns the current snapshot.
func (r *Registry) Register(userID model.ID, connID model.ConnID) []model.ActiveUser {
	if _, ok := r.Lookup(userID); !ok {
		r.users = append(r.users, model.ActiveUser{UserID: userID, ConnID: connID})
	}
	return r.Snapshot()
}

// Unregister removes every entry bound to connID and returns the updated snapshot.
func (r *Registry) Unregister(connID model.ConnID) []model.ActiveUser {
	r.users = slices.DeleteFunc(r.users, func(u model.ActiveUser) bool {
		return u.ConnID == connID
	})
	return r.Snapshot()
}

// Lookup returns connection registered for userID.
func (r *Registry) Lookup(userID model.ID) (model.ConnID, bool) {
	for _, u := range r.users {
		if u.UserID == userID {
			return u.ConnID, true
		}
	}
	return "", false
}

// Snapshot returns a copy of active users in registration order.
func (r *Registry) Snapshot() []model.ActiveUser {
	return append(make([]model.ActiveUser, 0, len(r.users)), r.users...)
}

func (r *Registry) Len() int {
	return len(r.users)
}

func (r *Registry) Reset() {
	r.users = nil
}
