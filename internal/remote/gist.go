package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

var (
	// ErrNoToken is returned when no GitHub token is configured.
	ErrNoToken = errors.New("GitHub token not set")
	// ErrBusy is returned when a save or load is already in flight.
	ErrBusy = errors.New("another gist request is in progress")
	// ErrEmptyGist is returned when a gist holds no files.
	ErrEmptyGist = errors.New("gist has no files")
)

// Gist identifies a saved gist.
type Gist struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client saves and loads reports as GitHub gists. One request runs at a
// time; overlapping calls fail fast with ErrBusy rather than queueing.
type Client struct {
	gh          *github.Client
	Description string
	Public      bool
	busy        atomic.Bool
}

// NewClient creates a gist client authenticated with token.
func NewClient(ctx context.Context, token string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &Client{
		gh:          github.NewClient(tc),
		Description: "Vulnerability lifecycle report",
	}, nil
}

// WithBaseURL points the client at a GitHub Enterprise or test API root.
func (c *Client) WithBaseURL(base string) (*Client, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	c.gh.BaseURL = u
	return c, nil
}

func (c *Client) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (c *Client) release() {
	c.busy.Store(false)
}

// Save creates a gist holding text under filename, or updates gistID when
// it is set.
func (c *Client) Save(ctx context.Context, gistID, filename, text string) (Gist, error) {
	if err := c.acquire(); err != nil {
		return Gist{}, err
	}
	defer c.release()

	if filename == "" {
		filename = "report.md"
	}
	g := &github.Gist{
		Description: github.String(c.Description),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(filename): {Content: github.String(text)},
		},
	}

	var (
		saved *github.Gist
		err   error
	)
	if gistID == "" {
		g.Public = github.Bool(c.Public)
		saved, _, err = c.gh.Gists.Create(ctx, g)
	} else {
		saved, _, err = c.gh.Gists.Edit(ctx, gistID, g)
	}
	if err != nil {
		return Gist{}, fmt.Errorf("failed to save gist: %w", err)
	}
	return Gist{ID: saved.GetID(), URL: saved.GetHTMLURL()}, nil
}

// Load returns the content of the gist's markdown file. When several files
// exist the first markdown one by name wins; a gist with no markdown file
// yields its first file.
func (c *Client) Load(ctx context.Context, gistID string) (string, error) {
	if err := c.acquire(); err != nil {
		return "", err
	}
	defer c.release()

	g, _, err := c.gh.Gists.Get(ctx, gistID)
	if err != nil {
		return "", fmt.Errorf("failed to load gist %s: %w", gistID, err)
	}
	if len(g.Files) == 0 {
		return "", ErrEmptyGist
	}

	names := make([]string, 0, len(g.Files))
	for name := range g.Files {
		names = append(names, string(name))
	}
	sort.Strings(names)

	pick := names[0]
	for _, name := range names {
		f := g.Files[github.GistFilename(name)]
		if isMarkdown(name) || strings.EqualFold(f.GetLanguage(), "markdown") {
			pick = name
			break
		}
	}
	f := g.Files[github.GistFilename(pick)]
	return f.GetContent(), nil
}

func isMarkdown(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
