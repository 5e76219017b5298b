// Package update compares the running build against the latest release
// published on GitHub.
package update

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

const releasesURL = "https://api.github.com/repos/cutzel/oracle-postprocess/releases/latest"

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 32 * time.Second
)

// Checker queries the GitHub releases API.
type Checker struct {
	// Endpoint overrides the releases URL, mostly for tests.
	Endpoint string
	client   *http.Client
}

// NewChecker creates a checker against the project's release feed.
func NewChecker() *Checker {
	return &Checker{
		Endpoint: releasesURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Release is a published build of the tool.
type Release struct {
	Version *semver.Version
	Tag     string
	URL     string
}

// NewerThan reports whether the release is newer than the given build
// version. A leading v is accepted.
func (r *Release) NewerThan(current string) (bool, error) {
	version, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false, eris.Wrapf(err, "failed to parse the build version %s", current)
	}

	return r.Version.GreaterThan(version), nil
}

type releasePayload struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	HTMLURL    string `json:"html_url"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
}

// Latest fetches the newest published release. A GITHUB_TOKEN or GH_TOKEN
// environment variable is forwarded for the higher rate limits.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to prepare the release request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "release request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.New("no published releases found")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, eris.Errorf("release request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload releasePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "failed to parse the release response")
	}

	if payload.Draft {
		return nil, eris.New("the latest release is still a draft")
	}

	version, err := semver.NewVersion(strings.TrimPrefix(payload.TagName, "v"))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse the release tag %s", payload.TagName)
	}

	return &Release{
		Version: version,
		Tag:     payload.TagName,
		URL:     payload.HTMLURL,
	}, nil
}

func (c *Checker) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Debug().Int("attempt", attempt).Msg("Retrying the release request")
			select {
			case <-time.After(calculateBackoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err = c.client.Do(req)
		if err != nil {
			if attempt < maxRetries {
				continue
			}
			return nil, err
		}

		if !isRetryableError(resp.StatusCode) {
			return resp, nil
		}

		if attempt < maxRetries {
			resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return resp, err
}

func isRetryableError(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}
