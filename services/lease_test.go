package services

import (
	"context"
	"testing"
	"time"
)

func TestLeaseMutualExclusion(t *testing.T) {
	setTestConfig(t, nil)
	l := &Lease{Key: "test:lease:" + t.Name(), TTL: time.Second}

	release, ok := l.Acquire(context.Background())
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}
	if _, ok := l.Acquire(context.Background()); ok {
		t.Fatal("expected second acquire to fail while lease held")
	}

	release()
	release2, ok := l.Acquire(context.Background())
	if !ok {
		t.Fatal("expected acquire to succeed after release")
	}
	release2()
}

func TestLeaseExpires(t *testing.T) {
	setTestConfig(t, nil)
	l := &Lease{Key: "test:lease:" + t.Name(), TTL: 20 * time.Millisecond}

	if _, ok := l.Acquire(context.Background()); !ok {
		t.Fatal("expected acquire to succeed")
	}
	time.Sleep(40 * time.Millisecond)

	// the first holder crashed without releasing; the TTL frees the lease
	release, ok := l.Acquire(context.Background())
	if !ok {
		t.Fatal("expected acquire to succeed after TTL expiry")
	}
	release()
}

func TestStaleReleaseDoesNotFreeNewLease(t *testing.T) {
	setTestConfig(t, nil)
	l := &Lease{Key: "test:lease:" + t.Name(), TTL: 20 * time.Millisecond}

	staleRelease, ok := l.Acquire(context.Background())
	if !ok {
		t.Fatal("expected acquire to succeed")
	}
	time.Sleep(40 * time.Millisecond)

	release, ok := l.Acquire(context.Background())
	if !ok {
		t.Fatal("expected acquire after expiry")
	}

	// the expired holder releasing late must not clobber the new holder
	staleRelease()
	if _, ok := l.Acquire(context.Background()); ok {
		t.Fatal("stale release freed a lease it no longer owned")
	}
	release()
}
