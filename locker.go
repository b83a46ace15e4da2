package lending

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// Locker serializes operations that touch the same accounts. Lock blocks until
// every key is held or ctx is done; the returned func releases them.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// KeyedLocker holds one binary semaphore per key. Keys are acquired in sorted
// order, so callers sharing a prefix scheme never deadlock. An entry lives only
// while some caller holds or waits for its key.
type KeyedLocker struct {
	mu   sync.Mutex
	sems map[string]*keyedSem
}

type keyedSem struct {
	sem  *semaphore.Weighted
	refs int
}

var _ Locker = (*KeyedLocker)(nil)

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{sems: map[string]*keyedSem{}}
}

func (l *KeyedLocker) acquireRef(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.sems[key]
	if !ok {
		entry = &keyedSem{sem: semaphore.NewWeighted(1)}
		l.sems[key] = entry
	}
	entry.refs++
	return entry.sem
}

func (l *KeyedLocker) releaseRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.sems[key]
	if !ok {
		return
	}
	if entry.refs--; entry.refs <= 0 {
		delete(l.sems, key)
	}
}

// size is the number of live keys.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sems)
}

func (l *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = orderKeys(keys)

	type heldKey struct {
		key string
		sem *semaphore.Weighted
	}
	held := make([]heldKey, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].sem.Release(1)
			l.releaseRef(held[i].key)
		}
	}

	for _, key := range keys {
		sem := l.acquireRef(key)
		if err := sem.Acquire(ctx, 1); err != nil {
			l.releaseRef(key)
			release()
			return nil, errors.Wrapf(err, "lock %s", key)
		}
		held = append(held, heldKey{key, sem})
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func orderKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// "bank/" sorts before "user/", so every bank is locked before any user.
func bankLockKey(id uuid.UUID) string {
	return "bank/" + id.String()
}

func userLockKey(id uuid.UUID) string {
	return "user/" + id.String()
}
