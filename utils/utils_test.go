package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cppla/queridometro/config"
)

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	UseRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { UseRedis(nil) })
	return mr
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	hash, err := h.Hash("segredo")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "segredo" || !h.Verify(hash, "segredo") {
		t.Fatal("hash must verify its own password")
	}
	if h.Verify(hash, "outro") {
		t.Fatal("wrong password verified")
	}
	if h.Verify("", "") {
		t.Fatal("empty hash must never verify")
	}
}

func TestTokenRoundTripAndBlacklist(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "k"})
	ctx := context.Background()

	token, expires, err := GenerateToken(7, "Érica", 3, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(token)
	if err != nil || claims.UserID != 7 || claims.Name != "Érica" || claims.Version != 3 {
		t.Fatalf("ParseToken = %+v, %v", claims, err)
	}

	if IsTokenBlacklisted(ctx, token) {
		t.Fatal("fresh token blacklisted")
	}
	BlacklistToken(ctx, token, expires)
	if !IsTokenBlacklisted(ctx, token) {
		t.Fatal("revoked token accepted")
	}

	expired, _, _ := GenerateToken(7, "Érica", 3, -time.Minute)
	if _, err := ParseToken(expired); err == nil {
		t.Fatal("expired token parsed")
	}
	if _, err := ParseToken(token + "x"); err == nil {
		t.Fatal("tampered token parsed")
	}
}

func TestLoginGuardMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	g := NewLoginGuard(nil, 3, 10*time.Minute)
	g.now = func() time.Time { return now }

	if g.Fail(ctx, "Ana") || g.Fail(ctx, "Ana") {
		t.Fatal("locked too early")
	}
	g.Reset(ctx, "Ana")
	if g.Fail(ctx, "Ana") || g.Fail(ctx, "Ana") {
		t.Fatal("reset did not clear failures")
	}
	if !g.Fail(ctx, "Ana") {
		t.Fatal("third failure must lock")
	}
	if !g.Locked(ctx, "Ana") || g.Locked(ctx, "Bruno") {
		t.Fatal("lock must apply to Ana only")
	}
	now = now.Add(11 * time.Minute)
	if g.Locked(ctx, "Ana") {
		t.Fatal("lock must expire")
	}

	off := NewLoginGuard(nil, 0, time.Minute)
	for i := 0; i < 10; i++ {
		if off.Fail(ctx, "Ana") {
			t.Fatal("disabled guard locked")
		}
	}
}

type fakePruner struct {
	cutoff string
	err    error
}

func (f *fakePruner) DeleteBefore(_ context.Context, day string) (int64, error) {
	f.cutoff = day
	return 3, f.err
}

func TestPruneOnce(t *testing.T) {
	ctx := context.Background()
	p := &fakePruner{}
	if n, err := PruneOnce(ctx, p, "2025-03-14", 0); n != 0 || err != nil || p.cutoff != "" {
		t.Fatal("retention 0 must keep everything")
	}
	n, err := PruneOnce(ctx, p, "2025-03-14", 30)
	if err != nil || n != 3 || p.cutoff != "2025-02-12" {
		t.Fatalf("PruneOnce = %d, %v, cutoff %s", n, err, p.cutoff)
	}
	p.err = errors.New("boom")
	if _, err := PruneOnce(ctx, p, "2025-03-14", 1); err == nil {
		t.Fatal("error not propagated")
	}
}

func TestResultsCacheAndPruneInvalidation(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()

	type view struct {
		Day    string `json:"day"`
		Voters int    `json:"voters"`
	}
	var got view
	if CacheGetJSON(ctx, ResultsCacheKey("2025-03-13"), &got) {
		t.Fatal("hit on empty cache")
	}
	CacheSetJSON(ctx, ResultsCacheKey("2025-03-13"), view{Day: "2025-03-13", Voters: 5}, time.Minute)
	CacheSetJSON(ctx, ResultsCacheKey("2025-03-12"), view{Day: "2025-03-12", Voters: 2}, 0)
	mr.Set("unrelated", "keep")
	if !CacheGetJSON(ctx, ResultsCacheKey("2025-03-13"), &got) || got.Voters != 5 {
		t.Fatalf("cached view = %+v", got)
	}
	if ttl := mr.TTL(ResultsCacheKey("2025-03-12")); ttl != defaultCacheTTL {
		t.Fatalf("default ttl = %v", ttl)
	}

	if _, err := PruneOnce(ctx, &fakePruner{}, "2025-03-14", 30); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(ResultsCacheKey("2025-03-13")) || mr.Exists(ResultsCacheKey("2025-03-12")) {
		t.Fatal("pruning must drop cached results")
	}
	if !mr.Exists("unrelated") {
		t.Fatal("pruning dropped a key outside the results prefix")
	}
}

func TestLoginGuardKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		redis bool
	}{{"memory", false}, {"redis", true}} {
		t.Run(tc.name, func(t *testing.T) {
			var rc *redis.Client
			if tc.redis {
				mr := miniredis.RunT(t)
				rc = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			}
			g := NewLoginGuard(rc, 2, time.Minute)
			g.Fail(ctx, "Ana|10.0.0.1")
			if !g.Fail(ctx, "Ana|10.0.0.1") {
				t.Fatal("second failure must lock")
			}
			if !g.Locked(ctx, "Ana|10.0.0.1") {
				t.Fatal("attacker key not locked")
			}
			if g.Locked(ctx, "Ana|10.0.0.2") {
				t.Fatal("lock leaked to another client")
			}
		})
	}
}
