package auth

import (
	"testing"
	"time"
)

// ─── Password hashing (Argon2id, slow on purpose) ──────────────────

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashPassword("correct-horse-battery-staple") //nolint:errcheck // benchmark
	}
}

func BenchmarkVerifyPassword(b *testing.B) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		b.Fatalf("HashPassword: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		VerifyPassword("correct-horse-battery-staple", hash) //nolint:errcheck // benchmark
	}
}

// ─── Access tokens (per-request hot path) ───────────────────────────

func BenchmarkIssueAccessToken(b *testing.B) {
	codec, err := NewTokenCodec(testSecret, 15*time.Minute)
	if err != nil {
		b.Fatalf("NewTokenCodec: %v", err)
	}
	roles := []Role{RoleAdmin}
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Issue("admin", roles, now) //nolint:errcheck // benchmark
	}
}

func BenchmarkVerifyAccessToken(b *testing.B) {
	codec, err := NewTokenCodec(testSecret, 15*time.Minute)
	if err != nil {
		b.Fatalf("NewTokenCodec: %v", err)
	}
	now := time.Now()
	token, _, err := codec.Issue("admin", []Role{RoleAdmin}, now)
	if err != nil {
		b.Fatalf("Issue: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Verify(token, now) //nolint:errcheck // benchmark
	}
}

// ─── Request gate path matching ─────────────────────────────────────

func BenchmarkPathMatcher(b *testing.B) {
	m, err := NewPathMatcher([]string{
		"/api/v1/auth/**", "/api/v1/public/**", "/api/v1/health",
		"/", "/index.html", "/css/**", "/js/**", "/images/**",
	})
	if err != nil {
		b.Fatalf("NewPathMatcher: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Match("/api/v1/admin/users/user1/logout")
	}
}
