package board

import (
	"github.com/oklog/ulid/v2"
)

// Object identities are client-assigned ulid strings. There is no
// central allocator; collision probability across a session is treated
// as negligible. An identity is immutable for the object's lifetime.

func NewIdentity() string {
	return ulid.Make().String()
}

func ValidIdentity(identity string) bool {
	return identity != ""
}
