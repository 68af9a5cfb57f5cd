package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "union-bff", "union-web")
	require.NoError(t, err)
	return c
}

func sampleData(expiresAt int64) Data {
	return Data{
		User: User{
			ID:       "5b0f7c5e",
			Email:    "test_user1@envention.test",
			Name:     "Test User",
			Username: "test_user1",
			Roles:    []string{"admin", "manage-account"},
		},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    expiresAt,
	}
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	_, err := NewCodec([]byte("short"), "iss", "aud")
	require.ErrorIs(t, err, ErrWeakSecret)
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	data := sampleData(time.Now().Add(time.Hour).Unix())

	token, err := c.Sign(data)
	require.NoError(t, err)

	got, err := c.VerifyStrict(token)
	require.NoError(t, err)
	require.Equal(t, data, got)

	got, err = c.VerifyAllowExpired(token)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCodecSignSetsRegisteredClaims(t *testing.T) {
	c := newTestCodec(t)
	data := sampleData(time.Now().Add(time.Hour).Unix())

	token, err := c.Sign(data)
	require.NoError(t, err)

	var claims tokenClaims
	_, _, err = jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)
	require.Equal(t, "union-bff", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"union-web"}, claims.Audience)
	require.Equal(t, data.ExpiresAt, claims.RegisteredClaims.ExpiresAt.Unix())
	require.NotNil(t, claims.IssuedAt)
}

func TestCodecExpired(t *testing.T) {
	c := newTestCodec(t)
	data := sampleData(time.Now().Add(-100 * time.Second).Unix())

	token, err := c.Sign(data)
	require.NoError(t, err)

	_, err = c.VerifyStrict(token)
	require.ErrorIs(t, err, ErrInvalidSessionToken)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
	require.ErrorIs(t, err, ErrSessionExpired)

	got, err := c.VerifyAllowExpired(token)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCodecForgedExpiredTokenIsNotReportedExpired(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec([]byte("fedcba9876543210fedcba9876543210"), "union-bff", "union-web")
	require.NoError(t, err)

	token, err := other.Sign(sampleData(time.Now().Add(-time.Hour).Unix()))
	require.NoError(t, err)

	_, err = c.VerifyStrict(token)
	require.ErrorIs(t, err, ErrInvalidSessionToken)
	require.NotErrorIs(t, err, ErrSessionExpired)
}

func TestCodecAllowExpiredWithoutExp(t *testing.T) {
	c := newTestCodec(t)

	// Hand-built token with no exp claim falls back to the real clock.
	claims := tokenClaims{
		Data: sampleData(0),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "union-bff",
			Audience: jwt.ClaimStrings{"union-web"},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	got, err := c.VerifyAllowExpired(token)
	require.NoError(t, err)
	require.Equal(t, "refresh-token", got.RefreshToken)
}

func TestCodecRejectsForeignTokens(t *testing.T) {
	c := newTestCodec(t)
	data := sampleData(time.Now().Add(time.Hour).Unix())

	t.Run("other secret", func(t *testing.T) {
		other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "union-bff", "union-web")
		require.NoError(t, err)
		token, err := other.Sign(data)
		require.NoError(t, err)

		_, err = c.VerifyStrict(token)
		require.ErrorIs(t, err, ErrInvalidSessionToken)
		_, err = c.VerifyAllowExpired(token)
		require.ErrorIs(t, err, ErrInvalidSessionToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewCodec(testSecret, "someone-else", "union-web")
		require.NoError(t, err)
		token, err := other.Sign(data)
		require.NoError(t, err)

		_, err = c.VerifyStrict(token)
		require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("other audience", func(t *testing.T) {
		other, err := NewCodec(testSecret, "union-bff", "mobile")
		require.NoError(t, err)
		token, err := other.Sign(data)
		require.NoError(t, err)

		_, err = c.VerifyAllowExpired(token)
		require.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
	})

	t.Run("alg none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{Data: data}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = c.VerifyAllowExpired(token)
		require.ErrorIs(t, err, ErrInvalidSessionToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.VerifyAllowExpired("not.a.token")
		require.ErrorIs(t, err, ErrInvalidSessionToken)
		_, err = c.VerifyStrict("")
		require.ErrorIs(t, err, ErrInvalidSessionToken)
	})
}

func TestCodecTamperedTokenFailsBothModes(t *testing.T) {
	c := newTestCodec(t)

	for _, expiresAt := range []int64{
		time.Now().Add(time.Hour).Unix(),
		time.Now().Add(-time.Hour).Unix(),
	} {
		token, err := c.Sign(sampleData(expiresAt))
		require.NoError(t, err)

		for i := 0; i < len(token); i++ {
			tampered := []byte(token)
			if tampered[i] == 'A' {
				tampered[i] = 'B'
			} else {
				tampered[i] = 'A'
			}

			_, err := c.VerifyStrict(string(tampered))
			require.Error(t, err, "strict accepted tamper at %d", i)
			_, err = c.VerifyAllowExpired(string(tampered))
			require.Error(t, err, "allow-expired accepted tamper at %d", i)
		}
	}
}

func TestCodecRejectsSpareBitsInSignature(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Sign(sampleData(time.Now().Add(time.Hour).Unix()))
	require.NoError(t, err)

	// An HS256 signature is 43 base64url characters; the low two bits of the
	// last one carry no data. Setting them must not verify.
	last := strings.IndexByte(base64URL, token[len(token)-1])
	require.GreaterOrEqual(t, last, 0)
	require.Zero(t, last&3)

	for bits := 1; bits <= 3; bits++ {
		tampered := token[:len(token)-1] + string(base64URL[last|bits])

		_, err := c.VerifyStrict(tampered)
		require.ErrorIs(t, err, ErrInvalidSessionToken)
		_, err = c.VerifyAllowExpired(tampered)
		require.ErrorIs(t, err, ErrInvalidSessionToken)
	}
}

const base64URL = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestCodecTokenIsCompact(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Sign(sampleData(time.Now().Add(time.Hour).Unix()))
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3)
}
