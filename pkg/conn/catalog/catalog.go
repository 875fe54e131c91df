package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Project is an active production in the external asset catalog.
type Project struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Division string   `json:"sg_type"`
	Site     string   `json:"site"`
	Tags     []string `json:"tag_list"`
}

// Asset is a catalog asset, grouped under its asset type in the level tree.
type Asset struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	AssetType string `json:"sg_asset_type"`
}

// Shot is one shot of a sequence.
type Shot struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

// Sequence is a catalog sequence together with its shots.
type Sequence struct {
	ID    int    `json:"id"`
	Code  string `json:"code"`
	Shots []Shot `json:"shots"`
}

// Catalog reads projects and their contents from the asset catalog.
//
// Implementations talk to the catalog gateway; tests use the mock package.
type Catalog interface {
	// FindProjects lists active projects, skipping those carrying any of
	// tagsToAvoid. A non-empty restrictTo narrows the result to those ids.
	FindProjects(ctx context.Context, tagsToAvoid []string, restrictTo []int) ([]Project, error)

	// FindProject fetches one active project by id.
	FindProject(ctx context.Context, projectID int) (Project, error)

	FindProjectAssets(ctx context.Context, projectID int) ([]Asset, error)
	FindProjectSequences(ctx context.Context, projectID int) ([]Sequence, error)
}

// ErrNotFound is returned when the catalog has no matching entity.
var ErrNotFound = xerrors.New("not found in catalog")

type httpCatalog struct {
	baseURL    string
	scriptName string
	apiKey     string
	client     *http.Client
}

// NewHTTPCatalog builds a Catalog over the catalog gateway's REST surface.
//
// timeout bounds each call, 0 meaning the 5 second default.
func NewHTTPCatalog(baseURL string, scriptName string, apiKey string, timeout time.Duration) Catalog {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpCatalog{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		scriptName: scriptName,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *httpCatalog) get(ctx context.Context, path string, query url.Values, into any) error {
	u := c.baseURL + path
	if len(query) != 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return xerrors.Wrap(err)
	}
	req.Header.Set("X-Script-Name", c.scriptName)
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return xerrors.New(fmt.Sprintf("catalog: GET %s: status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return xerrors.Wrap(err)
	}
	return nil
}

func (c *httpCatalog) FindProjects(ctx context.Context, tagsToAvoid []string, restrictTo []int) ([]Project, error) {
	query := url.Values{}
	for _, tag := range tagsToAvoid {
		query.Add("avoid_tag", tag)
	}
	for _, id := range restrictTo {
		query.Add("id", strconv.Itoa(id))
	}
	projects := []Project{}
	if err := c.get(ctx, "/projects", query, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *httpCatalog) FindProject(ctx context.Context, projectID int) (Project, error) {
	project := Project{}
	if err := c.get(ctx, "/projects/"+strconv.Itoa(projectID), nil, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

func (c *httpCatalog) FindProjectAssets(ctx context.Context, projectID int) ([]Asset, error) {
	assets := []Asset{}
	if err := c.get(ctx, "/projects/"+strconv.Itoa(projectID)+"/assets", nil, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (c *httpCatalog) FindProjectSequences(ctx context.Context, projectID int) ([]Sequence, error) {
	sequences := []Sequence{}
	if err := c.get(ctx, "/projects/"+strconv.Itoa(projectID)+"/sequences", nil, &sequences); err != nil {
		return nil, err
	}
	return sequences, nil
}
