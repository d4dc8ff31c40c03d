package imageupload

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/google/uuid"
)

type gcloudUploader struct {
	client *storage.Client
	bucket string
}

func newGcloudUploader(c context.Context, bucket string) (Uploader, func(), error) {
	client, err := storage.NewClient(c)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating storage-client: %s", err)
	}

	return &gcloudUploader{
			client: client,
			bucket: bucket,
		}, func() {
			client.Close()
		}, nil
}

func (u *gcloudUploader) Upload(c context.Context, imageBytes []byte, suggestedName string) (string, error) {
	// uuid prefix keeps same-named customer files from colliding
	objectName := fmt.Sprintf("photo-cakes/%s-%s", uuid.New().String(), suggestedName)

	writer := u.client.Bucket(u.bucket).Object(objectName).NewWriter(c)
	_, err := writer.Write(imageBytes)
	if err != nil {
		writer.Close()
		return "", fmt.Errorf("error writing object %s: %s", objectName, err)
	}

	err = writer.Close()
	if err != nil {
		return "", fmt.Errorf("error finalizing object %s: %s", objectName, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, objectName), nil
}
