package registry

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// unreachableDirectory returns a directory whose Redis client points
// nowhere, so any command that reaches the network fails loudly.
func unreachableDirectory() *RedisDirectory {
	return &RedisDirectory{
		client:            redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond}),
		instanceID:        "instance-1",
		prefix:            "discordia:presence",
		keyTTL:            30 * time.Second,
		heartbeatInterval: 10 * time.Second,
		managedKeys:       make(map[string]struct{}),
	}
}

func TestKeyFor(t *testing.T) {
	d := unreachableDirectory()
	if got := d.keyFor("u1"); got != "discordia:presence:user:u1" {
		t.Errorf("keyFor = %q", got)
	}
}

func TestWithdrawUnmanagedKeyIsNoOp(t *testing.T) {
	d := unreachableDirectory()

	// Never advertised here: no delete command may be issued, so this
	// succeeds even though the client cannot reach Redis.
	if err := d.Withdraw(context.Background(), "u1"); err != nil {
		t.Errorf("Withdraw: %v", err)
	}
}

func TestWithdrawGuardsOwnership(t *testing.T) {
	// The delete is conditional on the key still holding this
	// instance's ID; a newer instance's key survives a stale withdraw.
	script := withdrawScript.Hash()
	if script == "" {
		t.Fatal("withdraw script not defined")
	}

	d := unreachableDirectory()
	d.managedKeys[d.keyFor("u1")] = struct{}{}

	// Managed key: the conditional delete is issued and fails against
	// the unreachable client, proving the guard path is taken.
	if err := d.Withdraw(context.Background(), "u1"); err == nil {
		t.Error("expected network error from conditional delete")
	}

	// The bookkeeping entry is cleared either way; a second withdraw
	// is a no-op.
	if err := d.Withdraw(context.Background(), "u1"); err != nil {
		t.Errorf("second Withdraw: %v", err)
	}
}
