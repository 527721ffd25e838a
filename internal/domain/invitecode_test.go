package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

func TestNewInviteCode(t *testing.T) {
	t.Parallel()
	for i := 0; i < 50; i++ {
		code, err := domain.NewInviteCode()
		require.NoError(t, err)
		assert.True(t, domain.ValidInviteCode(code), "generated %q", code)
	}
}

func TestValidInviteCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"BRIDGE-00000", true},
		{"BRIDGE-98765", true},
		{"BRIDGE-1234", false},
		{"BRIDGE-123456", false},
		{"bridge-12345", false},
		{"BRIDGE-1234a", false},
		{"BRIDGE12345", false},
		{"", false},
		{" BRIDGE-12345", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.ValidInviteCode(tt.in), tt.in)
	}
}
