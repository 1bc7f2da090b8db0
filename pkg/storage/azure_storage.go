package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

type azureStorage struct {
	client    *azblob.Client
	container string
}

// NewAzureStorage authenticates with a shared key; SAS signing needs it.
func NewAzureStorage(accountName, accountKey, container string) (ObjectStorage, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure storage account name and key are required")
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}

	return &azureStorage{client: client, container: container}, nil
}

func (s *azureStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return s.blobClient(key).URL(), nil
}

func (s *azureStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	expiry := time.Now().UTC().Add(ttl)
	url, err := s.blobClient(key).GetSASURL(sas.BlobPermissions{Read: true}, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

func (s *azureStorage) blobClient(key string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key)
}
