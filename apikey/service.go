// Package apikey holds the credential side of the service: issuing,
// verifying, and revoking the opaque API keys that authenticate requests.
// A key belongs to a principal, which is either one specific user or the
// deployment-wide admin role. Only the SHA-256 digest of a key is ever
// persisted; the raw secret exists exactly once, in the response that
// delivered it to its owner.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/store"
)

// secretBytes is the entropy of a generated secret before encoding.
const secretBytes = 32

// Principal identifies the owner of a credential: a specific user or the
// admin role. Construct values with UserPrincipal or AdminPrincipal.
type Principal struct {
	userID int64
	admin  bool
}

// UserPrincipal is the principal of one specific user.
func UserPrincipal(userID int64) Principal {
	return Principal{userID: userID}
}

// AdminPrincipal is the deployment-wide admin role.
func AdminPrincipal() Principal {
	return Principal{admin: true}
}

// IsAdmin reports whether the principal is the admin role.
func (p Principal) IsAdmin() bool {
	return p.admin
}

// String names the principal for messages. It never contains secrets.
func (p Principal) String() string {
	if p.admin {
		return "admin"
	}
	return fmt.Sprintf("user %d", p.userID)
}

// Service implements the credential store operations on top of a KeyStore.
type Service struct {
	keys store.KeyStore
}

// NewService creates a new credential Service.
func NewService(keys store.KeyStore) *Service {
	return &Service{keys: keys}
}

// Digest computes the irreversible digest under which a secret is stored.
// It is deterministic so that verification can recompute and compare.
func Digest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// generateSecret produces a new URL-safe random secret.
func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperror.NewInternalError("failed to generate API key", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue generates a fresh secret for the principal, persists its digest, and
// returns the raw secret. The raw form is neither stored nor logged; callers
// must hand it to the owner immediately. Fails with a ConflictError when the
// principal already holds a credential.
func (s *Service) Issue(ctx context.Context, p Principal) (string, error) {
	secret, err := generateSecret()
	if err != nil {
		return "", err
	}

	key := &store.APIKey{Digest: Digest(secret), Admin: p.admin}
	if !p.admin {
		id := p.userID
		key.UserID = &id
	}
	if err := s.keys.InsertKey(ctx, key); err != nil {
		return "", err
	}
	return secret, nil
}

// Verify reports whether the presented secret matches the stored digest for
// the principal. The comparison is constant-time. A missing credential or an
// empty secret verifies as false, not as an error.
func (s *Service) Verify(ctx context.Context, p Principal, secret string) (bool, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false, nil
	}

	var stored *store.APIKey
	var err error
	if p.admin {
		stored, err = s.keys.AdminKey(ctx)
	} else {
		stored, err = s.keys.KeyForUser(ctx, p.userID)
	}
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return subtle.ConstantTimeCompare(stored.Digest, Digest(secret)) == 1, nil
}

// Revoke deletes the principal's credential. Revoking a principal that holds
// no credential is a no-op.
func (s *Service) Revoke(ctx context.Context, p Principal) error {
	if p.admin {
		return s.keys.DeleteAdminKey(ctx)
	}
	return s.keys.DeleteKeyForUser(ctx, p.userID)
}
