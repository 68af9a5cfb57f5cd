package jwtx_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/envention/union/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	exampleIssuer = "https://idp.example.com/realms/union"
	exampleClient = "union-app"

	base64URL = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

func newSignedToken(t *testing.T, signer jwtx.Signer, mutate func(*jwtx.Claims)) string {
	t.Helper()

	claims := jwtx.NewAccessClaims("user-123", exampleIssuer, []string{"account"}, 2*time.Minute, time.Now())
	claims.PreferredUsername = "testuser"
	claims.RealmAccess.Roles = []string{"admin"}
	if mutate != nil {
		mutate(&claims)
	}

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func TestVerifySignAndVerifyAllAlgorithms(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			signer, err := jwtx.GenerateSigner("kid-"+alg, alg)
			require.NoError(t, err)
			require.Equal(t, alg, signer.Alg())

			keys := jwtx.NewKeySet()
			require.NoError(t, keys.AddSigner(signer))

			v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
				Issuer:   exampleIssuer,
				Audience: []string{"account", exampleClient},
			})

			claims, err := v.Verify(context.Background(), newSignedToken(t, signer, nil))
			require.NoError(t, err)
			require.Equal(t, "user-123", claims.Subject)
			require.Equal(t, "testuser", claims.PreferredUsername)
			require.Equal(t, []string{"admin"}, claims.RealmAccess.Roles)
			require.NotEmpty(t, claims.ID)
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.GenerateSigner("k1", jwtx.AlgorithmRS256)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   exampleIssuer,
		Audience: []string{"account", exampleClient},
	})
	ctx := context.Background()

	t.Run("wrong issuer", func(t *testing.T) {
		token := newSignedToken(t, signer, func(c *jwtx.Claims) { c.Issuer = "https://evil.example.com" })
		_, err := v.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("audience not whitelisted", func(t *testing.T) {
		token := newSignedToken(t, signer, func(c *jwtx.Claims) { c.Audience = jwt.ClaimStrings{"other-app"} })
		_, err := v.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("client id audience accepted", func(t *testing.T) {
		token := newSignedToken(t, signer, func(c *jwtx.Claims) { c.Audience = jwt.ClaimStrings{exampleClient} })
		_, err := v.Verify(ctx, token)
		require.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token := newSignedToken(t, signer, func(c *jwtx.Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		})
		_, err := v.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token := newSignedToken(t, signer, nil)
		parts := strings.Split(token, ".")
		other := newSignedToken(t, signer, func(c *jwtx.Claims) { c.Subject = "someone-else" })
		forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

		_, err := v.Verify(ctx, forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("spare bits set in signature", func(t *testing.T) {
		// A 256 byte RS256 signature leaves four unused bits in the last
		// character.
		token := newSignedToken(t, signer, nil)
		last := strings.IndexByte(base64URL, token[len(token)-1])
		require.GreaterOrEqual(t, last, 0)
		forged := token[:len(token)-1] + string(base64URL[last|1])

		_, err := v.Verify(ctx, forged)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(ctx, "not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("unknown kid", func(t *testing.T) {
		stranger, err := jwtx.GenerateSigner("k2", jwtx.AlgorithmRS256)
		require.NoError(t, err)

		_, err = v.Verify(ctx, newSignedToken(t, stranger, nil))
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("key type does not match header", func(t *testing.T) {
		// Publish an EC key under the kid an RS256 token will ask for.
		ec, err := jwtx.GenerateSigner("shared", jwtx.AlgorithmES256)
		require.NoError(t, err)
		rs, err := jwtx.GenerateSigner("shared", jwtx.AlgorithmRS256)
		require.NoError(t, err)

		mixed := jwtx.NewKeySet()
		require.NoError(t, mixed.AddSigner(ec))
		mv := jwtx.NewVerifier(mixed, jwtx.VerifyOptions{Issuer: exampleIssuer})

		_, err = mv.Verify(ctx, newSignedToken(t, rs, nil))
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})
}

func TestVerifyLeeway(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.GenerateSigner("k1", jwtx.AlgorithmES256)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	token := newSignedToken(t, signer, func(c *jwtx.Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))
	})

	strict := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: exampleIssuer})
	_, err = strict.Verify(context.Background(), token)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	lenient := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: exampleIssuer, Leeway: 30 * time.Second})
	_, err = lenient.Verify(context.Background(), token)
	require.NoError(t, err)
}

func TestVerifyRestrictsAlgorithms(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.GenerateSigner("k1", jwtx.AlgorithmEdDSA)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	v := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Algorithms: []string{jwtx.AlgorithmRS256}})
	_, err = v.Verify(context.Background(), newSignedToken(t, signer, nil))
	require.Error(t, err)
}
