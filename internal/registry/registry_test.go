package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donationhub/internal/domain"
	"donationhub/internal/store/memory"
)

func sequence(codes ...string) CodeFunc {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func TestNewCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		assert.True(t, domain.ValidCode(code), code)
		assert.Equal(t, strings.ToUpper(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()

	reg, err := Register(ctx, dir, " moonzet16 ", sequence("ab12cd"))
	require.NoError(t, err)
	assert.Equal(t, Registration{Code: "AB12CD", Identity: "moonzet16", Created: true}, reg)

	reg, err = Register(ctx, dir, "MOONZET16", sequence("QQQQQQ"))
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", reg.Code)
	assert.Equal(t, "moonzet16", reg.Identity, "reuse echoes the stored identity")
	assert.False(t, reg.Created)

	reg, err = Register(ctx, dir, "kiki", sequence("AB12CD", "AB12CD", "ZZ99YY"))
	require.NoError(t, err)
	assert.Equal(t, "ZZ99YY", reg.Code)
}

func TestRegisterGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	_, err := Register(ctx, dir, "first", sequence("AAAAAA"))
	require.NoError(t, err)

	_, err = Register(ctx, dir, "second", sequence("AAAAAA"))
	assert.ErrorIs(t, err, domain.ErrCodeExhausted)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()

	_, err := Register(ctx, dir, "   ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Register(ctx, dir, strings.Repeat("x", MaxIdentityLen+1), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Register(ctx, dir, "ok", sequence("bad!"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	boom := errors.New("entropy gone")
	_, err = Register(ctx, dir, "ok", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestSetDisplayName(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()

	require.NoError(t, SetDisplayName(ctx, dir, " kiki ", " KikiTheGreat "))
	name, ok, err := dir.DisplayName(ctx, "kiki")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "KikiTheGreat", name)

	assert.ErrorIs(t, SetDisplayName(ctx, dir, "kiki", ""), domain.ErrInvalidInput)
}
