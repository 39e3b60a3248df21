package sources

import (
	"os"

	"github.com/gale-deploy/agent/internal/transfer"
)

// Defaults returns one source per supported repo scheme. Cloud sources
// authenticate lazily on first use, so registering them is free for
// agents that never touch those schemes.
func Defaults() []transfer.Source {
	return []transfer.Source{
		NewHTTPSource(),
		NewFileSource(),
		NewS3Source(),
		NewGSSource(),
		NewAzBlobSource(),
		NewB2Source(os.Getenv("GALE_B2_ACCOUNT_ID"), os.Getenv("GALE_B2_APP_KEY")),
	}
}
