package model

// VariantSpec describes one style/configuration within a job. Specs are
// request-scoped: they drive prompt construction and are not persisted
// beyond the job itself.
type VariantSpec struct {
	Style       string `json:"style"`
	Mood        string `json:"mood,omitempty"`
	ColorScheme string `json:"color_scheme,omitempty"`
	Emphasis    string `json:"emphasis,omitempty"`
}

// ReferenceInput points at a stored image (typically a frame extracted
// from the subject video) that conditions the generation call.
type ReferenceInput struct {
	StorageRef string `json:"storage_ref"`
	Kind       string `json:"kind,omitempty"` // e.g. "frame", "logo"
}
