// Package upload provides the voucher upload service: proof-of-payment
// files go out to external storage and come back as URLs.
package upload

import (
	"context"
	"io"
)

// Uploader stores a voucher file and returns its public URL. Calls may be
// slow and are at-least-once: re-uploading the same file is harmless, it
// just yields another URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}
