package sources

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
)

var driveSlash = regexp.MustCompile(`^/[A-Za-z]:`)

// FileSource serves file:// URLs and bare filesystem paths.
type FileSource struct{}

func NewFileSource() *FileSource {
	return &FileSource{}
}

func (FileSource) Schemes() []string {
	return []string{"file", ""}
}

func (FileSource) Get(ctx context.Context, u *url.URL, dst *os.File) error {
	src, err := os.Open(localPath(u))
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	_, err = io.Copy(dst, src)
	return err
}

// localPath extracts the filesystem path, undoing the leading slash
// file URLs put before Windows drive letters (file:///C:/x → C:/x).
func localPath(u *url.URL) string {
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if driveSlash.MatchString(p) {
		p = p[1:]
	}
	return p
}
