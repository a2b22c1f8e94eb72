package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(nil))
}

func TestShort(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"abc", "abc"},
		{"sha256:e3b0c44298fc1c149afbf4c8996fb924", "e3b0c44298fc"},
		{"e3b0c44298fc1c149afbf4c8996fb924", "e3b0c44298fc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Short(tt.in), tt.in)
	}
}
