package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// InviteCodePrefix is the fixed prefix of manager invitation codes.
const InviteCodePrefix = "BRIDGE-"

var inviteCodeRe = regexp.MustCompile(`^BRIDGE-\d{5}$`)

// NewInviteCode returns a fresh code of the form BRIDGE-DDDDD with a
// uniformly random five-digit suffix. Uniqueness is the caller's problem;
// the code space is small enough that collisions must be probed for.
func NewInviteCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		return "", fmt.Errorf("op=invitecode.New: %w", err)
	}
	return fmt.Sprintf("%s%05d", InviteCodePrefix, n.Int64()), nil
}

// ValidInviteCode reports whether s is a well-formed invitation code.
func ValidInviteCode(s string) bool {
	return inviteCodeRe.MatchString(s)
}
