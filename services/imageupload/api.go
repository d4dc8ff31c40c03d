package imageupload

import (
	"context"
	"os"
)

//go:generate mockgen -source=api.go -package imageupload -destination uploader_mock.go Uploader
type Uploader interface {
	// Upload stores the image bytes and returns a permanent public URL.
	Upload(c context.Context, imageBytes []byte, suggestedName string) (string, error)
}

func New(c context.Context) (Uploader, func(), error) {
	if os.Getenv("IMAGE_BUCKET") != "" {
		return newGcloudUploader(c, os.Getenv("IMAGE_BUCKET"))
	}

	return newFakeUploader()
}
