// Package metadata stores small key/value facts about the local session:
// the signed-in user and the credentials needed for an offline login.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyUsername = "username"
	KeyUserID   = "user_id"
	KeySalt     = "salt"
	KeyVerifier = "verifier"
	KeyLastSync = "last_sync"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
