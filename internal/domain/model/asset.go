package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"cover-studio/internal/domain"
)

// Asset is one generated cover image for a subject. Assets form a
// refinement lineage through ParentAssetID; version strictly increases
// along that chain. At most one asset per subject is selected at any
// instant.
type Asset struct {
	ID              string
	SubjectID       string
	UserID          string
	OutputClass     string
	Style           string
	GenerationOrder int
	Version         int
	ParentAssetID   *string
	IsSelected      bool

	// External storage payload metadata; the datastore never holds bytes.
	StorageRef string
	URL        string
	SecureURL  string
	Bytes      int64
	Width      int
	Height     int
	Format     string

	CreatedAt time.Time
}

func NewAsset(userID, subjectID, outputClass, style string, generationOrder int) (*Asset, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(subjectID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if generationOrder < 1 {
		return nil, domain.ErrInvalidArgument
	}
	return &Asset{
		ID:              ulid.Make().String(),
		SubjectID:       subjectID,
		UserID:          userID,
		OutputClass:     outputClass,
		Style:           style,
		GenerationOrder: generationOrder,
		Version:         1,
		CreatedAt:       time.Now(),
	}, nil
}

// NewRefinement derives a child asset from parent, advancing the lineage
// version. Metadata is inherited; the storage payload is set by the caller
// after the edited image is uploaded.
func (a *Asset) NewRefinement() *Asset {
	parentID := a.ID
	return &Asset{
		ID:              ulid.Make().String(),
		SubjectID:       a.SubjectID,
		UserID:          a.UserID,
		OutputClass:     a.OutputClass,
		Style:           a.Style,
		GenerationOrder: a.GenerationOrder,
		Version:         a.Version + 1,
		ParentAssetID:   &parentID,
		CreatedAt:       time.Now(),
	}
}
