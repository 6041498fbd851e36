// internal/adapters/out/firestore/profile_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront/internal/application/session"
	udom "storefront/internal/domain/user"
)

// ProfileRepositoryFS owns the users/{uid} profile documents.
//
// IMPORTANT:
// - docId is the identity provider UID, so uid and docId can never drift.
// - createdAt is written only when the doc does not exist; updatedAt is
//   refreshed by every ensure/update (server timestamps).
type ProfileRepositoryFS struct {
	Client *firestore.Client
}

func NewProfileRepositoryFS(client *firestore.Client) *ProfileRepositoryFS {
	return &ProfileRepositoryFS{Client: client}
}

func (r *ProfileRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("users")
}

func (r *ProfileRepositoryFS) guard(uid string) (string, error) {
	if r == nil || r.Client == nil {
		return "", errors.New("profile_repository_fs: firestore client is nil")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", udom.ErrInvalidUID
	}
	return uid, nil
}

// Ensure merge-writes the profile document for acct.
func (r *ProfileRepositoryFS) Ensure(ctx context.Context, acct session.Account, extra map[string]string) error {
	uid, err := r.guard(acct.UID)
	if err != nil {
		return err
	}

	ref := r.col().Doc(uid)

	exists := false
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("profile_repository_fs: ensure get: %w", err)
		}
	} else {
		exists = snap.Exists()
	}

	payload := map[string]any{
		"uid":        uid,
		"email":      strings.TrimSpace(acct.Email),
		"name":       strings.TrimSpace(acct.DisplayName),
		"photoURL":   strings.TrimSpace(acct.PhotoURL),
		"providerId": strings.TrimSpace(acct.ProviderID),
		"updatedAt":  firestore.ServerTimestamp,
	}
	if v := strings.TrimSpace(extra["phone"]); v != "" {
		payload["phone"] = v
	}
	if v := strings.TrimSpace(extra["address"]); v != "" {
		payload["address"] = v
	}
	if !exists {
		payload["createdAt"] = firestore.ServerTimestamp
	}

	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return fmt.Errorf("profile_repository_fs: ensure set: %w", err)
	}
	return nil
}

// Update merge-writes only the supplied fields.
func (r *ProfileRepositoryFS) Update(ctx context.Context, uid string, fields map[string]any) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	if _, err := r.col().Doc(uid).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("profile_repository_fs: update: %w", err)
	}
	return nil
}

// Delete removes the profile document.
func (r *ProfileRepositoryFS) Delete(ctx context.Context, uid string) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}

	if _, err := r.col().Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("profile_repository_fs: delete: %w", err)
	}
	return nil
}

// Get returns the stored profile, or udom.ErrNotFound.
func (r *ProfileRepositoryFS) Get(ctx context.Context, uid string) (*udom.Profile, error) {
	uid, err := r.guard(uid)
	if err != nil {
		return nil, err
	}

	snap, err := r.col().Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, udom.ErrNotFound
		}
		return nil, fmt.Errorf("profile_repository_fs: get: %w", err)
	}

	raw := snap.Data()
	p := &udom.Profile{UID: uid}
	if raw == nil {
		return p, nil
	}

	p.Email = asString(raw["email"])
	p.Name = asString(raw["name"])
	p.PhotoURL = asString(raw["photoURL"])
	p.Phone = asString(raw["phone"])
	p.Address = asString(raw["address"])
	p.ProviderID = asString(raw["providerId"])
	if t, ok := raw["createdAt"].(time.Time); ok {
		p.CreatedAt = t
	}
	if t, ok := raw["updatedAt"].(time.Time); ok {
		p.UpdatedAt = t
	}
	return p, nil
}
