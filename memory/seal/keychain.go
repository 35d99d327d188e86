package seal

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"

	"github.com/becomeliminal/memvault/memory/kv"
)

// keyID is the fixed identifier the key is persisted under. There is
// exactly one key per keychain bucket for the lifetime of the store.
const keyID = "memvault.key.v1"

// Keychain manages the lifecycle of the single persistent symmetric key.
// The first caller generates and persists a key; every later caller — in
// this process or a future one — converges on the same key.
type Keychain struct {
	bucket kv.Store

	mu     sync.Mutex
	cipher *Cipher
}

// NewKeychain creates a Keychain over its own kv bucket. The bucket must
// not be shared with document storage: clearing documents must never
// touch the key.
func NewKeychain(bucket kv.Store) *Keychain {
	return &Keychain{bucket: bucket}
}

// Cipher returns the AEAD handle for the persistent key, generating and
// persisting a new key on first use. Safe under concurrent first-call
// races: PutIfAbsent on the backend picks exactly one winner and every
// caller adopts it.
func (k *Keychain) Cipher(ctx context.Context) (*Cipher, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cipher != nil {
		return k.cipher, nil
	}

	key, err := k.bucket.Get(ctx, keyID)
	if err != nil {
		if !kv.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}

		fresh := make([]byte, KeySize)
		if _, err := rand.Read(fresh); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}

		// Another process may have won the race; adopt whatever survived.
		key, err = k.bucket.PutIfAbsent(ctx, keyID, fresh)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
		}
		log.Printf("[SEAL] Generated new persistent key")
	}

	c, err := New(key)
	if err != nil {
		return nil, err
	}
	k.cipher = c
	return c, nil
}
