package group

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
)

// inviteBytes of entropy encode to an 8 character base32 code.
const inviteBytes = 5

var inviteEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateInviteCode returns a random 8 character code (A-Z, 2-7). It is
// called once at group creation; callers rely on the storage uniqueness
// constraint and retry on collision.
func GenerateInviteCode() (string, error) {
	return generateInviteCode(rand.Reader)
}

func generateInviteCode(r io.Reader) (string, error) {
	buf := make([]byte, inviteBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read invite entropy: %w", err)
	}
	return inviteEncoding.EncodeToString(buf), nil
}
