// Package auth implements login with auto-registration: an unseen username
// is registered on its first successful attempt instead of being rejected.
// Secrets are stored as-is in the credentials collection; hardening that (and
// moving the check server-side) is a known open issue.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tassianasc/blablachat/internal/store"
)

const (
	credentialsPath = "credentials"
	usersPath       = "users"
)

var (
	// ErrMissingFields means username or secret was blank; rejected before
	// any store I/O.
	ErrMissingFields = errors.New("auth: username and secret are required")

	// ErrBadCredentials means the username exists but the secret differs.
	ErrBadCredentials = errors.New("auth: wrong credentials")
)

// Credential is one login record in the credentials collection.
type Credential struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// Result reports a successful login and whether it registered a new user.
type Result struct {
	Username   string
	Registered bool
}

// Authenticator validates credentials against the store.
type Authenticator struct {
	store store.Store
	log   *slog.Logger
}

func New(st store.Store, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{store: st, log: log}
}

// Login authenticates username/secret. A known username with a matching
// secret logs in; a mismatch fails; an unknown username is auto-registered
// (credential record appended, directory entry written) and logged in.
func (a *Authenticator) Login(ctx context.Context, username, secret string) (Result, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(secret) == "" {
		return Result{}, ErrMissingFields
	}

	snap, err := a.store.ReadOnce(ctx, credentialsPath)
	if err != nil {
		return Result{}, fmt.Errorf("auth: read credentials: %w", err)
	}
	children, err := snap.Children()
	if err != nil {
		return Result{}, fmt.Errorf("auth: decode credentials: %w", err)
	}

	for _, raw := range children {
		var cred Credential
		if err := store.NewSnapshot(raw).Decode(&cred); err != nil {
			continue
		}
		if cred.Username != username {
			continue
		}
		if cred.Secret != secret {
			return Result{}, ErrBadCredentials
		}
		return Result{Username: username}, nil
	}

	return a.register(ctx, username, secret)
}

func (a *Authenticator) register(ctx context.Context, username, secret string) (Result, error) {
	if _, err := a.store.Append(ctx, credentialsPath, Credential{Username: username, Secret: secret}); err != nil {
		return Result{}, fmt.Errorf("auth: register %s: %w", username, err)
	}
	if err := a.store.Write(ctx, usersPath+"/"+username, map[string]string{"username": username}); err != nil {
		return Result{}, fmt.Errorf("auth: create directory entry for %s: %w", username, err)
	}
	a.log.Info("registered new user", "username", username)
	return Result{Username: username, Registered: true}, nil
}
