// internal/domain/user/profile.go
package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidUID = errors.New("user: invalid uid")
	ErrNotFound   = errors.New("user: not found")
)

// Profile is the account profile document stored at users/{uid}.
// UID doubles as the docID (= identity provider UID), so the two can never drift.
type Profile struct {
	UID        string    `json:"uid" firestore:"uid"`
	Email      string    `json:"email" firestore:"email"`
	Name       string    `json:"name" firestore:"name"`
	PhotoURL   string    `json:"photoURL" firestore:"photoURL"`
	Phone      string    `json:"phone,omitempty" firestore:"phone"`
	Address    string    `json:"address,omitempty" firestore:"address"`
	ProviderID string    `json:"providerId" firestore:"providerId"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// NewProfile builds a profile for uid with normalized fields.
func NewProfile(uid, email, name string, now time.Time) (*Profile, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrInvalidUID
	}
	return &Profile{
		UID:       uid,
		Email:     strings.TrimSpace(email),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Patch is a partial profile update. Nil fields are left untouched;
// only supplied fields are merge-written.
type Patch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// WantsDisplayNameUpdate reports whether the patch carries a name that should
// also be reflected into the identity provider's display name (non-empty after
// trimming; empty strings still merge into the document but do not touch the
// provider profile).
func (p Patch) WantsDisplayNameUpdate() bool {
	return p.Name != nil && strings.TrimSpace(*p.Name) != ""
}

// Fields returns the merge-write payload for the supplied fields only.
func (p Patch) Fields(now time.Time) map[string]any {
	out := map[string]any{
		"updatedAt": now,
	}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Email != nil {
		out["email"] = *p.Email
	}
	if p.Phone != nil {
		out["phone"] = *p.Phone
	}
	if p.Address != nil {
		out["address"] = *p.Address
	}
	return out
}
