// Package archive keeps copies of delivered artifacts in Azure Blob Storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

var (
	ErrEmptyKey   = errors.New("archive: empty task id or file name")
	ErrInvalidKey = errors.New("archive: key contains path traversal")
)

type Archive struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// New validates the connection string and creates the client. No request is
// made until EnsureContainer or Upload.
func New(connectionString, container string, logger *slog.Logger) (*Archive, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return &Archive{
		client:    client,
		container: container,
		logger:    logger.With("component", "archive"),
	}, nil
}

// EnsureContainer creates the container if it does not exist yet.
func (a *Archive) EnsureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", a.container, err)
	}
	a.logger.Info("archive container ready", "container", a.container)
	return nil
}

// Upload stores data at tasks/{taskID}/{fileName} and returns the blob URL.
func (a *Archive) Upload(ctx context.Context, taskID, fileName, contentType string, data []byte) (string, error) {
	key, err := Key(taskID, fileName)
	if err != nil {
		return "", err
	}

	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}
	if _, err := a.client.UploadBuffer(ctx, a.container, key, data, opts); err != nil {
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}

	a.logger.Debug("artifact uploaded", "key", key, "size", len(data))
	return strings.TrimRight(a.client.URL(), "/") + "/" + a.container + "/" + key, nil
}

// Key builds the blob name for an artifact. Directory parts of fileName are
// dropped.
func Key(taskID, fileName string) (string, error) {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if taskID == "" || fileName == "" || name == "." || name == "/" {
		return "", ErrEmptyKey
	}
	if strings.Contains(taskID, "..") || strings.Contains(taskID, "/") || name == ".." {
		return "", ErrInvalidKey
	}
	return "tasks/" + taskID + "/" + name, nil
}
