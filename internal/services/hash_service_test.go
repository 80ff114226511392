package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPHasher_Hash(t *testing.T) {
	hasher := NewIPHasher("salt")

	t.Run("returns consistent hash for same address", func(t *testing.T) {
		hash1 := hasher.Hash("203.0.113.7")
		hash2 := hasher.Hash("203.0.113.7")

		assert.Equal(t, hash1, hash2)
		assert.Len(t, hash1, 64)
		assert.True(t, hasher.IsValidHash(hash1))
	})

	t.Run("ignores port", func(t *testing.T) {
		assert.Equal(t, hasher.Hash("203.0.113.7"), hasher.Hash("203.0.113.7:51234"))
		assert.Equal(t, hasher.Hash("2001:db8::1"), hasher.Hash("[2001:db8::1]:443"))
	})

	t.Run("different addresses differ", func(t *testing.T) {
		assert.NotEqual(t, hasher.Hash("203.0.113.7"), hasher.Hash("203.0.113.8"))
	})

	t.Run("different salts differ", func(t *testing.T) {
		other := NewIPHasher("pepper")
		assert.NotEqual(t, hasher.Hash("203.0.113.7"), other.Hash("203.0.113.7"))
	})

	t.Run("long salts are accepted", func(t *testing.T) {
		long := NewIPHasher(string(make([]byte, 200)))
		assert.Len(t, long.Hash("203.0.113.7"), 64)
	})

	t.Run("empty address hashes to empty", func(t *testing.T) {
		assert.Equal(t, "", hasher.Hash("  "))
	})
}

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"203.0.113.7", "203.0.113.7"},
		{"203.0.113.7:8080", "203.0.113.7"},
		{"[2001:DB8::1]:443", "2001:db8::1"},
		{"fe80::1%eth0", "fe80::1"},
		{" 2001:0db8:0000::0001 ", "2001:db8::1"},
		{"Not-An-IP", "not-an-ip"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeIP(tt.input))
		})
	}
}

func TestIPHasher_IsValidHash(t *testing.T) {
	hasher := NewIPHasher("salt")

	tests := []struct {
		name     string
		hash     string
		expected bool
	}{
		{"valid lowercase", "abc123def456abc123def456abc123def456abc123def456abc123def456abcd", true},
		{"uppercase", "ABC123DEF456ABC123DEF456ABC123DEF456ABC123DEF456ABC123DEF456ABCD", false},
		{"empty", "", false},
		{"too short", "abc123", false},
		{"invalid char", "abc123def456abc123def456abc123def456abc123def456abc123def456abcZ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hasher.IsValidHash(tt.hash))
		})
	}
}
