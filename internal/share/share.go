// Package share publishes a captured training log as a GitHub gist.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when publishing without a GitHub token.
var ErrNoToken = errors.New("share: no GitHub token configured (set LY_GITHUB_TOKEN)")

// Publisher uploads a named text document and returns a URL for it.
type Publisher interface {
	Publish(ctx context.Context, name, content string) (string, error)
}

// GistPublisher creates one gist per published log.
type GistPublisher struct {
	client *github.Client
	public bool
}

// GistOpts configures a GistPublisher.
type GistOpts struct {
	Token   string
	Public  bool
	BaseURL string       // API root; empty for api.github.com
	HTTP    *http.Client // base transport for the oauth2 client
}

// NewGistPublisher builds a publisher authenticated with a static token.
func NewGistPublisher(opts GistOpts) (*GistPublisher, error) {
	if opts.Token == "" {
		return nil, ErrNoToken
	}
	ctx := context.Background()
	if opts.HTTP != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTP)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("share: base url: %w", err)
		}
		if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
			u.Path += "/"
		}
		client.BaseURL = u
	}
	return &GistPublisher{client: client, public: opts.Public}, nil
}

// Publish creates a gist holding content as the file name.
func (g *GistPublisher) Publish(ctx context.Context, name, content string) (string, error) {
	gist := &github.Gist{
		Description: github.Ptr("Training log " + name),
		Public:      github.Ptr(g.public),
		Files: map[github.GistFilename]github.GistFile{
			github.GistFilename(name): {Content: github.Ptr(content)},
		},
	}
	created, _, err := g.client.Gists.Create(ctx, gist)
	if err != nil {
		return "", fmt.Errorf("share: create gist: %w", err)
	}
	if created.GetHTMLURL() == "" {
		return "", errors.New("share: gist created without a URL")
	}
	return created.GetHTMLURL(), nil
}
