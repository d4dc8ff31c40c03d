package imageupload

import (
	"context"
	"fmt"
)

// fakeUploader serves local development: no object storage involved.
type fakeUploader struct {
}

func newFakeUploader() (Uploader, func(), error) {
	return &fakeUploader{}, func() {}, nil
}

func (u *fakeUploader) Upload(c context.Context, imageBytes []byte, suggestedName string) (string, error) {
	return fmt.Sprintf("https://localhost/fake-bucket/photo-cakes/%s", suggestedName), nil
}
