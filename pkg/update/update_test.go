package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeReleases(t *testing.T, handler http.HandlerFunc) *Checker {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	checker := NewChecker()
	checker.Endpoint = srv.URL
	return checker
}

func TestLatest(t *testing.T) {
	t.Run("returns the published release", func(t *testing.T) {
		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{"tag_name":"v1.2.3","name":"1.2.3","html_url":"https://example.org/releases/v1.2.3"}`))
		})

		rel, err := checker.Latest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1.2.3", rel.Version.String())
		assert.Equal(t, "v1.2.3", rel.Tag)
		assert.Equal(t, "https://example.org/releases/v1.2.3", rel.URL)
	})

	t.Run("forwards the token from the environment", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "fallback-token")

		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer fallback-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"tag_name":"v1.0.0"}`))
		})

		_, err := checker.Latest(context.Background())
		require.NoError(t, err)
	})

	t.Run("rejects drafts", func(t *testing.T) {
		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"tag_name":"v9.9.9","draft":true}`))
		})

		_, err := checker.Latest(context.Background())
		assert.ErrorContains(t, err, "draft")
	})

	t.Run("repository without releases", func(t *testing.T) {
		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := checker.Latest(context.Background())
		assert.ErrorContains(t, err, "no published releases")
	})

	t.Run("surfaces unexpected statuses", func(t *testing.T) {
		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad credentials"))
		})

		_, err := checker.Latest(context.Background())
		assert.ErrorContains(t, err, "status 401")
		assert.ErrorContains(t, err, "bad credentials")
	})

	t.Run("fails on unparsable tags", func(t *testing.T) {
		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"tag_name":"nightly"}`))
		})

		_, err := checker.Latest(context.Background())
		assert.ErrorContains(t, err, "failed to parse the release tag")
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"tag_name":"v1.0.0"}`))
		})

		rel, err := checker.Latest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v1.0.0", rel.Tag)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestNewerThan(t *testing.T) {
	checker := fakeReleases(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v1.2.3"}`))
	})
	rel, err := checker.Latest(context.Background())
	require.NoError(t, err)

	t.Run("older build", func(t *testing.T) {
		newer, err := rel.NewerThan("1.0.0")
		require.NoError(t, err)
		assert.True(t, newer)
	})

	t.Run("same build with v prefix", func(t *testing.T) {
		newer, err := rel.NewerThan("v1.2.3")
		require.NoError(t, err)
		assert.False(t, newer)
	})

	t.Run("newer build", func(t *testing.T) {
		newer, err := rel.NewerThan("2.0.0-rc1")
		require.NoError(t, err)
		assert.False(t, newer)
	})

	t.Run("unparsable build version", func(t *testing.T) {
		_, err := rel.NewerThan("dev")
		assert.ErrorContains(t, err, "failed to parse the build version")
	})
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, initialBackoff, calculateBackoff(0))
	assert.Equal(t, 2*initialBackoff, calculateBackoff(1))
	assert.Equal(t, maxBackoff, calculateBackoff(20))
}
