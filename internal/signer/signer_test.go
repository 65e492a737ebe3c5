package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAndFunc(t *testing.T) {
	t.Parallel()

	sig, err := Static("abc").Sign(context.Background(), nil, "", VersionPaged)
	require.NoError(t, err)
	assert.Equal(t, "abc", sig)

	var gotVersion int
	f := Func(func(_ context.Context, params url.Values, _ string, version int) (string, error) {
		gotVersion = version
		return params.Get("k"), nil
	})
	sig, err = f.Sign(context.Background(), url.Values{"k": {"v"}}, "ua", VersionFirstPage)
	require.NoError(t, err)
	assert.Equal(t, "v", sig)
	assert.Equal(t, VersionFirstPage, gotVersion)
}

func TestRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Version {
		case VersionPaged:
			_, _ = w.Write([]byte(`{"X-Bogus": "signed:` + req.Query + `"}`))
		case VersionFirstPage:
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, time.Second)
	sig, err := remote.Sign(context.Background(), url.Values{"a": {"1"}}, "ua", VersionPaged)
	require.NoError(t, err)
	assert.Equal(t, "signed:a=1", sig)

	_, err = remote.Sign(context.Background(), nil, "ua", VersionFirstPage)
	require.Error(t, err)

	_, err = remote.Sign(context.Background(), nil, "ua", 1)
	require.Error(t, err)
}
