package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoto(t *testing.T) {
	t.Run("creates claiming photo with valid parameters", func(t *testing.T) {
		uploadedOn := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

		photo, err := NewPhoto(7, 2.35, 48.85, true, uploadedOn, "iphash")

		require.NoError(t, err)
		assert.Zero(t, photo.ID)
		assert.Equal(t, int64(7), photo.OwnerID)
		assert.Equal(t, ExchangeClaiming, photo.Exchange.State())
		assert.True(t, IsValidPhotoName(photo.Name))
		assert.True(t, photo.IsPublic)
		assert.Equal(t, uploadedOn, photo.UploadedOn)
		assert.False(t, photo.IsDeleted())
		assert.False(t, photo.HasLocationMap())
		assert.False(t, photo.IsAnonymous())
	})

	t.Run("accepts anonymous coordinates", func(t *testing.T) {
		photo, err := NewPhoto(1, AnonymousCoordinate, AnonymousCoordinate, false, time.Now(), "")

		require.NoError(t, err)
		assert.True(t, photo.IsAnonymous())
	})

	t.Run("rejects invalid owner", func(t *testing.T) {
		_, err := NewPhoto(0, 0, 0, false, time.Now(), "")
		assert.ErrorIs(t, err, ErrInvalidOwner)
	})

	t.Run("rejects out of range coordinates", func(t *testing.T) {
		cases := [][2]float64{{181, 0}, {0, -91}, {-181, AnonymousCoordinate}}
		for _, c := range cases {
			_, err := NewPhoto(1, c[0], c[1], false, time.Now(), "")
			assert.ErrorIs(t, err, ErrInvalidCoordinates, "lon=%v lat=%v", c[0], c[1])
		}
	})

	t.Run("generates unique names", func(t *testing.T) {
		photo1, err := NewPhoto(1, 0, 0, false, time.Now(), "")
		require.NoError(t, err)

		photo2, err := NewPhoto(1, 0, 0, false, time.Now(), "")
		require.NoError(t, err)

		assert.NotEqual(t, photo1.Name, photo2.Name)
	})
}

func TestIsValidPhotoName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"generated", NewPhotoName(), true},
		{"empty", "", false},
		{"uppercase", "ABCDEF0123456789ABCDEF0123456789", false},
		{"path traversal", "../../etc/passwd0000000000000000", false},
		{"too short", "abc123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidPhotoName(tt.input))
		})
	}
}

func TestPhoto_IsPairedWith(t *testing.T) {
	a := &Photo{ID: 1, Exchange: PairedExchange(2)}
	b := &Photo{ID: 2, Exchange: PairedExchange(1)}
	c := &Photo{ID: 3, Exchange: PairedExchange(1)}

	assert.True(t, a.IsPairedWith(b))
	assert.True(t, b.IsPairedWith(a))
	assert.False(t, c.IsPairedWith(a), "one-sided link")
	assert.False(t, a.IsPairedWith(c))
	assert.False(t, a.IsPairedWith(nil))
}
