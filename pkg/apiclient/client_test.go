package apiclient_test

import (
	"net/http"
	"testing"

	"github.com/envention/union/pkg/apiclient"
	"github.com/stretchr/testify/require"
)

func TestClientJSONHelpers(t *testing.T) {
	t.Parallel()

	api := newDownstream(t, "fresh")
	src := &stubSource{token: "stale", next: []string{"fresh"}}
	cache := apiclient.NewTokenCache("")
	c := apiclient.NewClient(api.URL+"/", src, cache)

	var out struct {
		OK   bool           `json:"ok"`
		Echo map[string]any `json:"echo"`
	}
	require.NoError(t, c.PostJSON(t.Context(), "/plans", map[string]string{"code": "P1"}, &out))
	require.True(t, out.OK)
	require.Equal(t, "P1", out.Echo["code"])
	require.Equal(t, 1, src.refreshes)

	// Shared cache already holds the refreshed token.
	require.NoError(t, c.GetJSON(t.Context(), "/plans", &out))
	require.Equal(t, 1, src.refreshes)
	require.Equal(t, "fresh", cache.Get())
}

func TestClientStatusError(t *testing.T) {
	t.Parallel()

	api := newDownstream(t, "good")
	c := apiclient.NewClient(api.URL, &stubSource{token: "good"}, nil)

	err := c.GetJSON(t.Context(), "/forbidden", nil)
	var statusErr *apiclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	require.Equal(t, "no", statusErr.Body)
}
