package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/types"
)

// CloudinaryUploader uploads flyers to Cloudinary and returns the secure URL.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryUploader reads credentials from a cloudinary:// URL.
func NewCloudinaryUploader(cfg config.CloudinaryConfig) (*CloudinaryUploader, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("cloudinary url is required")
	}
	cld, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, key string, flyer types.Flyer) (string, error) {
	// Cloudinary appends the format itself.
	publicID := strings.TrimSuffix(key, path.Ext(key))

	resp, err := u.cld.Upload.Upload(ctx, bytes.NewReader(flyer.Data), uploader.UploadParams{
		PublicID: publicID,
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("cloudinary: empty secure url")
	}
	return resp.SecureURL, nil
}
