// Package portal is a session against the course portal's JSON API.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/italolelis/politodown/internal/dc"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/transfer"
	"golang.org/x/oauth2"
)

const apiPrefix = "/api/v1"

type Client struct {
	baseURL *url.URL
	http    *http.Client
	fetcher *dc.Fetcher
}

var _ transfer.Session = (*Client)(nil)

// NewClient returns a portal session. Every request carries token as a bearer token.
func NewClient(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid portal base url: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid portal base url %q: scheme and host are required", baseURL)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, dc.NewHTTPClient(nil))
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, tokenSource)

	return &Client{
		baseURL: u,
		http:    httpClient,
		fetcher: dc.NewFetcher(httpClient),
	}, nil
}

type user struct {
	Username string `json:"username"`
}

type entry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Filename string  `json:"filename,omitempty"`
	Size     int64   `json:"size,omitempty"`
	URL      string  `json:"url,omitempty"`
	Type     string  `json:"type,omitempty"`
	Stores   []entry `json:"stores,omitempty"`
}

type listing struct {
	Items []entry `json:"items"`
}

func (c *Client) Authenticate(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "authenticating with the course portal")

	var me user
	if err := c.getJSON(ctx, "authenticate", "me", "/me", &me); err != nil {
		logger.ErrorContext(ctx, "failed to get account info", "err", err)

		return fmt.Errorf("failed to get account info: %w", err)
	}

	logger.InfoContext(ctx, "authenticated with the course portal", "user", me.Username)

	return nil
}

// Materials lists the materials of an academic year, keyed by name.
func (c *Client) Materials(ctx context.Context, year string) (map[string]*transfer.Node, error) {
	var l listing
	if err := c.getJSON(ctx, "materials", "year "+year, "/years/"+url.PathEscape(year)+"/materials", &l); err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}

	return nodes(l.Items, transfer.KindMaterial, nil), nil
}

// Assignments lists the assignments of a material, keyed by name.
func (c *Client) Assignments(ctx context.Context, material *transfer.Node) (map[string]*transfer.Node, error) {
	var l listing
	if err := c.getJSON(ctx, "assignments", material.Name, "/materials/"+url.PathEscape(material.ID)+"/assignments", &l); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	return nodes(l.Items, transfer.KindAssignment, material), nil
}

// VideoStores lists the video stores of a year grouped by collection name.
func (c *Client) VideoStores(ctx context.Context, year string) (map[string]map[string]*transfer.Node, error) {
	var l listing
	if err := c.getJSON(ctx, "video_stores", "year "+year, "/years/"+url.PathEscape(year)+"/videostores", &l); err != nil {
		return nil, fmt.Errorf("failed to list video stores: %w", err)
	}

	stores := make(map[string]map[string]*transfer.Node, len(l.Items))

	for _, collection := range l.Items {
		parent := &transfer.Node{ID: collection.ID, Kind: transfer.KindVideoCollection, Name: collection.Name}
		stores[collection.Name] = nodes(collection.Stores, transfer.KindVideoStore, parent)
	}

	return stores, nil
}

// Children lists every file of an assignment or folder, descending into sub-folders.
func (c *Client) Children(ctx context.Context, node *transfer.Node) ([]*transfer.File, error) {
	var l listing
	if err := c.getJSON(ctx, "children", node.Name, childrenPath(node), &l); err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", node.Name, err)
	}

	var files []*transfer.File

	for _, e := range l.Items {
		if e.Type != "folder" {
			files = append(files, newFile(e, transfer.KindFile, node))

			continue
		}

		folder := &transfer.Node{ID: e.ID, Kind: transfer.KindFolder, Name: e.Name, Parent: node}

		nested, err := c.Children(ctx, folder)
		if err != nil {
			return nil, err
		}

		files = append(files, nested...)
	}

	return files, nil
}

// NamedChildren lists the lessons of a video store keyed by lesson name.
func (c *Client) NamedChildren(ctx context.Context, node *transfer.Node) (map[string]*transfer.File, error) {
	var l listing
	if err := c.getJSON(ctx, "named_children", node.Name, "/videostores/"+url.PathEscape(node.ID)+"/lessons", &l); err != nil {
		return nil, fmt.Errorf("failed to list lessons of %s: %w", node.Name, err)
	}

	named := make(map[string]*transfer.File, len(l.Items))

	for _, e := range l.Items {
		named[e.Name] = newFile(e, transfer.KindVideoLesson, node)
	}

	return named, nil
}

// Save streams f into dir. Relative file URLs are resolved against the portal.
func (c *Client) Save(
	ctx context.Context, f *transfer.File, dir string, naming transfer.NamingStrategy, onChunk func(transfer.Chunk),
) error {
	if f.URL == "" {
		return &transfer.NotFoundError{Resource: f.Name}
	}

	ref, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("invalid url for %s: %w", f.Name, err)
	}

	return c.fetcher.Save(ctx, c.baseURL.ResolveReference(ref).String(), f, dir, naming, onChunk)
}

func (c *Client) getJSON(ctx context.Context, operation, resource, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+apiPrefix+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dc.ResponseError(operation, resource, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	return nil
}

func childrenPath(node *transfer.Node) string {
	if node.Kind == transfer.KindFolder {
		return "/folders/" + url.PathEscape(node.ID) + "/files"
	}

	return "/assignments/" + url.PathEscape(node.ID) + "/files"
}

func nodes(entries []entry, kind transfer.Kind, parent *transfer.Node) map[string]*transfer.Node {
	out := make(map[string]*transfer.Node, len(entries))

	for _, e := range entries {
		out[e.Name] = &transfer.Node{ID: e.ID, Kind: kind, Name: e.Name, Parent: parent}
	}

	return out
}

func newFile(e entry, kind transfer.Kind, parent *transfer.Node) *transfer.File {
	return &transfer.File{
		ID:       e.ID,
		Kind:     kind,
		Name:     e.Name,
		Filename: e.Filename,
		Size:     e.Size,
		URL:      e.URL,
		Parent:   parent,
	}
}
