package adapter

import "context"

// UploadParams carries the destination key and content metadata for an
// object-storage upload.
type UploadParams struct {
	Key         string
	ContentType string
	Metadata    map[string]string
}

// Upload is the stored payload descriptor persisted on the Asset row.
type Upload struct {
	Ref       string
	URL       string
	SecureURL string
	Bytes     int64
	Width     int
	Height    int
	Format    string
}

// ObjectStorage is the port for the external object store. Download is
// needed by refinement, which re-reads the parent payload before the
// edit call.
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, params UploadParams) (*Upload, error)
	Download(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
