package sources

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzBlobSource serves azblob://account/container/blob locations. Access
// is anonymous; private repos embed a SAS token in the URL query.
type AzBlobSource struct {
	mu      sync.Mutex
	clients map[string]*azblob.Client
}

func NewAzBlobSource() *AzBlobSource {
	return &AzBlobSource{clients: make(map[string]*azblob.Client)}
}

func (s *AzBlobSource) Schemes() []string {
	return []string{"azblob"}
}

func (s *AzBlobSource) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	account := u.Host
	container, blob := splitContainerBlob(u.Path)
	if account == "" || container == "" || blob == "" {
		return fmt.Errorf("azblob location %q needs the form azblob://account/container/blob", u.String())
	}

	client, err := s.clientFor(account, u.RawQuery)
	if err != nil {
		return err
	}

	_, err = client.DownloadFile(ctx, container, blob, dst, nil)
	return err
}

func (s *AzBlobSource) clientFor(account, sas string) (*azblob.Client, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	if sas != "" {
		serviceURL += "?" + sas
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[serviceURL]; ok {
		return client, nil
	}

	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create azblob client: %w", err)
	}
	s.clients[serviceURL] = client
	return client, nil
}

// splitContainerBlob splits "/container/path/to/blob" into its two parts.
func splitContainerBlob(p string) (string, string) {
	p = strings.TrimPrefix(p, "/")
	container, blob, ok := strings.Cut(p, "/")
	if !ok {
		return container, ""
	}
	return container, blob
}
