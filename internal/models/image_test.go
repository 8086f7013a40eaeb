package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseImageURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ref    string
		wantID uint
		wantOK bool
	}{
		{"stored image", "/images/42", 42, true},
		{"default avatar", DefaultProfileImage, 0, false},
		{"external url", "https://example.com/a.png", 0, false},
		{"zero id", "/images/0", 0, false},
		{"garbage id", "/images/abc", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, ok := ParseImageURL(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestImageIDsSkipsForeignReferences(t *testing.T) {
	t.Parallel()

	ids := ImageIDs([]string{"/images/3", DefaultProfileImage, "/images/7"})
	assert.Equal(t, []uint{3, 7}, ids)
	assert.Equal(t, "/images/3", ImageURL(3))
}
