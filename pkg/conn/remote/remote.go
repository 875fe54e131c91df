package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spinvfx/spinfab/pkg/domain"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Configs reads effective configuration documents from the config
// service.
type Configs interface {
	// EffectiveConfig resolves the named config at path, merged down the
	// level tree. False when no active config of that name applies.
	EffectiveConfig(ctx context.Context, name string, path domain.LevelPath) (map[string]any, bool, error)
}

// Deps reads resolved package lists from the dependency service.
type Deps interface {
	// ProfilePackages flattens the effective profile with the given id
	// into "name-version" strings. False when no such profile exists.
	ProfilePackages(ctx context.Context, profileID string) ([]string, bool, error)

	// PackagesAtPath does the same for the effective profile governing
	// a level path.
	PackagesAtPath(ctx context.Context, path domain.LevelPath) ([]string, bool, error)
}

type client struct {
	baseURL string
	token   string
	client  *http.Client
}

// get decodes a JSON response into `into`. The boolean is false on 404.
func (c *client) get(ctx context.Context, path string, query url.Values, into any) (bool, error) {
	u := c.baseURL + path
	if len(query) != 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, xerrors.New(fmt.Sprintf("remote: GET %s: status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return false, xerrors.Wrap(err)
	}
	return true, nil
}

func newClient(baseURL string, token string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type httpConfigs struct {
	*client
}

// NewHTTPConfigs builds a Configs over the config service REST surface.
func NewHTTPConfigs(baseURL string, token string, timeout time.Duration) Configs {
	return &httpConfigs{client: newClient(baseURL, token, timeout)}
}

func (c *httpConfigs) EffectiveConfig(ctx context.Context, name string, path domain.LevelPath) (map[string]any, bool, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("path", string(path))

	body := map[string]any{}
	found, err := c.get(ctx, "/effective-config", query, &body)
	if err != nil || !found {
		return nil, false, err
	}
	return body, true, nil
}

type httpDeps struct {
	*client
}

// NewHTTPDeps builds a Deps over the dependency service REST surface.
func NewHTTPDeps(baseURL string, token string, timeout time.Duration) Deps {
	return &httpDeps{client: newClient(baseURL, token, timeout)}
}

func (c *httpDeps) ProfilePackages(ctx context.Context, profileID string) ([]string, bool, error) {
	packages := []string{}
	found, err := c.get(ctx, "/profiles/"+url.PathEscape(profileID)+"/all", nil, &packages)
	if err != nil || !found {
		return nil, false, err
	}
	return packages, true, nil
}

func (c *httpDeps) PackagesAtPath(ctx context.Context, path domain.LevelPath) ([]string, bool, error) {
	query := url.Values{}
	query.Set("path", string(path))

	packages := []string{}
	found, err := c.get(ctx, "/effective-profile/all", query, &packages)
	if err != nil || !found {
		return nil, false, err
	}
	return packages, true, nil
}
