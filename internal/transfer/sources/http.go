// Package sources implements the transfer sources for each supported
// repository scheme.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// HTTPSource serves http and https locations.
type HTTPSource struct {
	Client *http.Client
}

func NewHTTPSource() *HTTPSource {
	return &HTTPSource{Client: &http.Client{}}
}

func (s *HTTPSource) Schemes() []string {
	return []string{"http", "https"}
}

func (s *HTTPSource) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	_, err = io.Copy(dst, resp.Body)
	return err
}
