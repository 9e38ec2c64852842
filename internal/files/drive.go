package files

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"budgetrecon/internal/googleauth"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var _ BlobStore = (*DriveStore)(nil)

// DriveStore keeps workbooks as files in a Drive folder. Locations are
// drive://<file id>.
type DriveStore struct {
	svc    *drive.Service
	folder string
	retry  googleauth.RetryPolicy
}

func NewDriveStore(ctx context.Context, folderID string, opts ...option.ClientOption) (*DriveStore, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveStore{svc: svc, folder: strings.TrimSpace(folderID), retry: googleauth.DefaultRetry}, nil
}

func (s *DriveStore) Scheme() string { return "drive" }

func (s *DriveStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	meta := &drive.File{Name: name}
	if s.folder != "" {
		meta.Parents = []string{s.folder}
	}
	var created *drive.File
	err := googleauth.Retry(ctx, s.retry, "drive upload", func(ctx context.Context) error {
		var err error
		created, err = s.svc.Files.Create(meta).
			Media(bytes.NewReader(data)).
			Fields("id").
			SupportsAllDrives(true).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to drive: %w", name, err)
	}
	return "drive://" + created.Id, nil
}

func (s *DriveStore) Get(ctx context.Context, location string) ([]byte, error) {
	id, err := driveID(location)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = googleauth.Retry(ctx, s.retry, "drive download", func(ctx context.Context) error {
		resp, err := s.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download drive file %s: %w", id, err)
	}
	return data, nil
}

func (s *DriveStore) Delete(ctx context.Context, location string) error {
	id, err := driveID(location)
	if err != nil {
		return err
	}
	err = s.svc.Files.Delete(id).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil && !googleauth.IsNotFound(err) {
		return fmt.Errorf("delete drive file %s: %w", id, err)
	}
	return nil
}

func driveID(location string) (string, error) {
	id := strings.TrimPrefix(location, "drive://")
	if id == location || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("invalid drive location: %s", location)
	}
	return id, nil
}
