// Package putio serves course material mirrored into a put.io folder tree:
//
//	<root>/<year>/Materiali/<material>/<assignment>/...
//	<root>/<year>/Videolezioni/<collection>/<store>/<lesson>
package putio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/italolelis/politodown/internal/dc"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/transfer"
	"github.com/putdotio/go-putio"
	"golang.org/x/oauth2"
)

const (
	materialsFolder = "Materiali"
	videosFolder    = "Videolezioni"
)

type Client struct {
	putioClient *putio.Client
	fetcher     *dc.Fetcher
	rootID      int64
}

var _ transfer.Session = (*Client)(nil)

// NewClient returns a session over the put.io folder rootID, authenticated with token.
func NewClient(token string, rootID int64) *Client {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	oauthClient := oauth2.NewClient(context.Background(), tokenSource)

	return &Client{
		putioClient: putio.NewClient(oauthClient),
		fetcher:     dc.NewFetcher(nil),
		rootID:      rootID,
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "authenticating with Put.io")

	user, err := c.putioClient.Account.Info(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get account info", "err", err)

		return fmt.Errorf("failed to get account info: %w", apiError("authenticate", "account", err))
	}

	logger.InfoContext(ctx, "authenticated with Put.io", "user", user.Username)

	return nil
}

// Materials lists the material folders of a year, keyed by name.
func (c *Client) Materials(ctx context.Context, year string) (map[string]*transfer.Node, error) {
	category, err := c.categoryFolder(ctx, year, materialsFolder)
	if err != nil {
		return nil, err
	}

	id, err := folderID(category)
	if err != nil {
		return nil, err
	}

	return c.folders(ctx, id, transfer.KindMaterial, nil)
}

// Assignments lists the assignment folders of a material, keyed by name.
func (c *Client) Assignments(ctx context.Context, material *transfer.Node) (map[string]*transfer.Node, error) {
	id, err := folderID(material)
	if err != nil {
		return nil, err
	}

	return c.folders(ctx, id, transfer.KindAssignment, material)
}

// VideoStores lists the video stores of a year grouped by collection name.
func (c *Client) VideoStores(ctx context.Context, year string) (map[string]map[string]*transfer.Node, error) {
	category, err := c.categoryFolder(ctx, year, videosFolder)
	if err != nil {
		return nil, err
	}

	categoryID, err := folderID(category)
	if err != nil {
		return nil, err
	}

	collections, err := c.folders(ctx, categoryID, transfer.KindVideoCollection, nil)
	if err != nil {
		return nil, err
	}

	stores := make(map[string]map[string]*transfer.Node, len(collections))

	for name, collection := range collections {
		id, err := folderID(collection)
		if err != nil {
			return nil, err
		}

		nodes, err := c.folders(ctx, id, transfer.KindVideoStore, collection)
		if err != nil {
			return nil, err
		}

		stores[name] = nodes
	}

	return stores, nil
}

// Children lists every file below node. Sub-folders become Folder nodes so
// their files land in matching local directories.
func (c *Client) Children(ctx context.Context, node *transfer.Node) ([]*transfer.File, error) {
	id, err := folderID(node)
	if err != nil {
		return nil, err
	}

	return c.filesRecursively(ctx, id, node)
}

// NamedChildren lists the files directly inside node keyed by file name.
func (c *Client) NamedChildren(ctx context.Context, node *transfer.Node) (map[string]*transfer.File, error) {
	id, err := folderID(node)
	if err != nil {
		return nil, err
	}

	files, _, err := c.putioClient.Files.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", apiError("named_children", node.Name, err))
	}

	named := make(map[string]*transfer.File, len(files))

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		named[f.Name] = newFile(f, transfer.KindVideoLesson, node)
	}

	return named, nil
}

// Save resolves a download URL for f and streams it into dir.
func (c *Client) Save(
	ctx context.Context, f *transfer.File, dir string, naming transfer.NamingStrategy, onChunk func(transfer.Chunk),
) error {
	logger := logctx.LoggerFromContext(ctx)

	id, err := strconv.ParseInt(f.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid put.io file id %q: %w", f.ID, err)
	}

	url, err := c.putioClient.Files.URL(ctx, id, false)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get file download url", "file_id", f.ID, "err", err)

		return fmt.Errorf("failed to get file download url: %w", apiError("save", f.Name, err))
	}

	f.URL = url

	return c.fetcher.Save(ctx, url, f, dir, naming, onChunk)
}

func (c *Client) categoryFolder(ctx context.Context, year, category string) (*transfer.Node, error) {
	years, err := c.folders(ctx, c.rootID, transfer.KindFolder, nil)
	if err != nil {
		return nil, err
	}

	yearNode, ok := years[year]
	if !ok {
		return nil, &transfer.NotFoundError{Resource: "year " + year}
	}

	yearID, err := folderID(yearNode)
	if err != nil {
		return nil, err
	}

	categories, err := c.folders(ctx, yearID, transfer.KindFolder, nil)
	if err != nil {
		return nil, err
	}

	node, ok := categories[category]
	if !ok {
		return nil, &transfer.NotFoundError{Resource: year + "/" + category}
	}

	return node, nil
}

// folders lists the sub-folders of parentID as nodes of the given kind.
func (c *Client) folders(ctx context.Context, parentID int64, kind transfer.Kind, parent *transfer.Node) (map[string]*transfer.Node, error) {
	files, _, err := c.putioClient.Files.List(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", apiError("list", strconv.FormatInt(parentID, 10), err))
	}

	nodes := make(map[string]*transfer.Node)

	for _, f := range files {
		if !f.IsDir() {
			continue
		}

		nodes[f.Name] = &transfer.Node{
			ID:     strconv.FormatInt(f.ID, 10),
			Kind:   kind,
			Name:   f.Name,
			Parent: parent,
		}
	}

	return nodes, nil
}

func (c *Client) filesRecursively(ctx context.Context, parentID int64, parent *transfer.Node) ([]*transfer.File, error) {
	files, _, err := c.putioClient.Files.List(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", apiError("children", parent.Name, err))
	}

	var result []*transfer.File

	for _, f := range files {
		if !f.IsDir() {
			result = append(result, newFile(f, kindOf(f), parent))

			continue
		}

		folder := &transfer.Node{
			ID:     strconv.FormatInt(f.ID, 10),
			Kind:   transfer.KindFolder,
			Name:   f.Name,
			Parent: parent,
		}

		nested, err := c.filesRecursively(ctx, f.ID, folder)
		if err != nil {
			return nil, err
		}

		result = append(result, nested...)
	}

	return result, nil
}

func newFile(f putio.File, kind transfer.Kind, parent *transfer.Node) *transfer.File {
	return &transfer.File{
		ID:       strconv.FormatInt(f.ID, 10),
		Kind:     kind,
		Name:     f.Name,
		Filename: f.Name,
		Size:     f.Size,
		Parent:   parent,
	}
}

func kindOf(f putio.File) transfer.Kind {
	if strings.EqualFold(f.FileType, "VIDEO") {
		return transfer.KindVideoLesson
	}

	return transfer.KindFile
}

func folderID(node *transfer.Node) (int64, error) {
	id, err := strconv.ParseInt(node.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid put.io folder id %q for %s: %w", node.ID, node.Name, err)
	}

	return id, nil
}

// apiError maps go-putio errors onto the transfer error taxonomy.
func apiError(operation, resource string, err error) error {
	var errResp *putio.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		msg := errResp.Message
		if msg == "" {
			msg = http.StatusText(errResp.Response.StatusCode)
		}

		mapped := dc.StatusError(operation, resource, errResp.Response.StatusCode, msg)

		return fmt.Errorf("%w: %w", mapped, err)
	}

	return err
}
