package cloudinaryad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

// Store uploads room images and hands back their public URLs.
type Store struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func New(cloudName, apiKey, apiSecret, folder string) (*Store, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return NewWithClient(cld, folder), nil
}

func NewWithClient(cld *cloudinary.Cloudinary, folder string) *Store {
	return &Store{cld: cld, folder: folder}
}

var _ domain.ImageStore = (*Store)(nil)

func (s *Store) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	params := uploader.UploadParams{Folder: s.folder}

	start := time.Now()
	res, err := s.cld.Upload.Upload(ctx, r, params)
	status := 200
	if err != nil || (res != nil && res.Error.Message != "") {
		status = 0
	}
	observability.ObserveExternal("cloudinary", "upload", status, time.Since(start))

	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", name, res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("upload returned no url")
	}
	return res.SecureURL, nil
}
