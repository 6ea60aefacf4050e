package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stridehq/stride/utils"
)

// releaseLeaseScript deletes the lease key only when it still holds our token,
// so a tick that outlived its TTL cannot release somebody else's lease.
const releaseLeaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Lease is a crash-safe mutual-exclusion lease with an expiry, used to keep
// dispatch ticks from overlapping. Redis (SET NX PX) is preferred so the lease
// holds across processes; when Redis is unreachable it degrades to an
// in-process lease, which still guards a single instance.
type Lease struct {
	Key string
	TTL time.Duration
}

type memLease struct {
	token     string
	expiresAt time.Time
}

var (
	memLeases   = map[string]memLease{}
	memLeasesMu sync.Mutex
)

// Acquire attempts to take the lease. On success it returns a release
// function and true; otherwise nil and false. Release is safe to call even
// after the TTL elapsed.
func (l *Lease) Acquire(ctx context.Context) (func(), bool) {
	token := uuid.NewString()

	if rc := utils.GetRedis(); rc != nil {
		ok, err := rc.SetNX(ctx, l.Key, token, l.TTL).Result()
		if err == nil {
			if !ok {
				return nil, false
			}
			release := func() {
				rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := rc.Eval(rctx, releaseLeaseScript, []string{l.Key}, token).Err(); err != nil && utils.Sugar != nil {
					utils.Sugar.Warnf("lease release failed for %s: %v", l.Key, err)
				}
			}
			return release, true
		}
		// Redis unreachable: fall through to the in-memory lease
	}

	memLeasesMu.Lock()
	defer memLeasesMu.Unlock()

	now := time.Now()
	if cur, ok := memLeases[l.Key]; ok && now.Before(cur.expiresAt) {
		return nil, false
	}
	memLeases[l.Key] = memLease{token: token, expiresAt: now.Add(l.TTL)}

	release := func() {
		memLeasesMu.Lock()
		defer memLeasesMu.Unlock()
		if cur, ok := memLeases[l.Key]; ok && cur.token == token {
			delete(memLeases, l.Key)
		}
	}
	return release, true
}
