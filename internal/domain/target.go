package domain

// OwnerType tags which entity an asset version belongs to.
type OwnerType string

const (
	OwnerShot      OwnerType = "shot"
	OwnerCharacter OwnerType = "character"
	OwnerScene     OwnerType = "scene"
	OwnerProp      OwnerType = "prop"
)

// AssetType distinguishes the media kind of a stored artifact.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetVideo AssetType = "video"
	AssetText  AssetType = "text"
)

// Shot is one narrative beat of a storyboard. Script is the stored text the
// prompt builder wraps when no custom prompt is supplied.
type Shot struct {
	ID           string
	ProjectID    string
	Title        string
	Script       string
	Description  string
	AssetURL     string
	VideoURL     string
	AspectRatio  string
	CharacterIDs []string
	SceneID      string
	PropIDs      []string
}

// LinkedAsset is a character, scene or prop referenced by a shot. The project
// thumbnail overrides the library default when both exist.
type LinkedAsset struct {
	ID              string
	ProjectID       string
	Name            string
	ProjectThumbURL string
	LibraryThumbURL string
	ThumbWidth      int
	ThumbHeight     int
}

// ThumbnailURL resolves the reference image for a linked asset following the
// project-override -> library-default chain.
func (a *LinkedAsset) ThumbnailURL() string {
	if a == nil {
		return ""
	}
	if a.ProjectThumbURL != "" {
		return a.ProjectThumbURL
	}
	return a.LibraryThumbURL
}

// Project carries the per-project generation defaults consulted when a task
// message leaves a parameter empty.
type Project struct {
	ID                 string
	OwnerID            string
	DefaultModel       string
	DefaultAspectRatio string
}

// AssetVersion is one persisted artifact record.
type AssetVersion struct {
	ID          string
	ProjectID   string
	OwnerType   OwnerType
	OwnerID     string
	Type        AssetType
	URL         string
	Prompt      string
	Model       string
	AspectRatio string
	UserID      string
}
