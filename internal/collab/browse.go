// ABOUTME: Directory-browse collaborator client for choosing a working directory
// ABOUTME: Used only to obtain a path before set_cwd is sent

package collab

import (
	"context"
	"net/url"
)

// DirEntry is one entry in a browsed directory.
type DirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// Browser talks to the directory-browse collaborator.
type Browser struct {
	client *Client
}

// NewBrowser creates a Browser on the shared collaborator Client.
func NewBrowser(client *Client) *Browser {
	return &Browser{client: client}
}

// Browse lists the entries under path on the backend host.
func (b *Browser) Browse(ctx context.Context, path string) ([]DirEntry, error) {
	var out struct {
		Entries []DirEntry `json:"entries"`
	}
	q := url.Values{"path": {path}}
	if err := b.client.getJSON(ctx, "/api/browse?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
