package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryUploader stores vouchers in a Cloudinary folder.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryFromEnv builds an uploader from CLOUDINARY_CLOUD_NAME,
// CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET. The folder defaults to
// "vouchers" when VOUCHER_FOLDER is unset.
func NewCloudinaryFromEnv() (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(
		os.Getenv("CLOUDINARY_CLOUD_NAME"),
		os.Getenv("CLOUDINARY_API_KEY"),
		os.Getenv("CLOUDINARY_API_SECRET"),
	)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	folder := os.Getenv("VOUCHER_FOLDER")
	if folder == "" {
		folder = "vouchers"
	}
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

var _ Uploader = (*CloudinaryUploader)(nil)

func (u *CloudinaryUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := u.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder: u.folder,
	})
	if err != nil {
		return "", fmt.Errorf("upload voucher %s: %w", filename, err)
	}
	return resp.SecureURL, nil
}
