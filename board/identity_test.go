package board

import (
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/oklog/ulid/v2"
)

func TestNewIdentityUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100000; i += 1 {
		identity := NewIdentity()
		assert.Equal(t, ValidIdentity(identity), true)
		assert.Equal(t, seen[identity], false)
		seen[identity] = true
	}
}

func TestNewIdentityParses(t *testing.T) {
	identity := NewIdentity()
	_, err := ulid.ParseStrict(identity)
	assert.Equal(t, err, nil)
}

func TestValidIdentity(t *testing.T) {
	assert.Equal(t, ValidIdentity(""), false)
	// foreign identities are opaque strings, any non-empty value works
	assert.Equal(t, ValidIdentity("r1"), true)
}
