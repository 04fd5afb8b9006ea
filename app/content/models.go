package content

import (
	"path"
	"strings"
	"time"
)

type ThumbnailSource string

const (
	ThumbnailGenerated ThumbnailSource = "generated"
	ThumbnailCustom    ThumbnailSource = "custom"
)

func (s ThumbnailSource) Valid() bool {
	return s == ThumbnailGenerated || s == ThumbnailCustom
}

// Category is a topic tag a publish can be filed under.
type Category string

var categories = map[Category]bool{
	"art": true, "music": true, "gaming": true, "education": true, "comedy": true,
	"sports": true, "news": true, "technology": true, "travel": true, "food": true,
	"fitness": true, "film": true, "science": true, "lifestyle": true, "animals": true,
}

func (c Category) Valid() bool {
	return categories[c]
}

// PublishState is derived from the processing fields of a Publish.
type PublishState string

const (
	StateUploading PublishState = "uploading"
	StateReady     PublishState = "ready"
	StateErrored   PublishState = "errored"
)

// Playback is filled in by the transcoder once processing is done.
type Playback struct {
	Duration  float64 `json:"duration"`
	Preview   string  `json:"preview"`
	Thumbnail string  `json:"thumbnail"`
	HLS       string  `json:"hls"`
	DASH      string  `json:"dash"`
}

type Publish struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Filename          string          `json:"filename"`
	ThumbnailSource   ThumbnailSource `json:"thumbnailSource"`
	ThumbnailURI      string          `json:"thumbnailUri"`
	PrimaryCategory   Category        `json:"primaryCategory"`
	SecondaryCategory Category        `json:"secondaryCategory"`
	Playback          *Playback       `json:"playback"`
	Visible           bool            `json:"visible"`
	TokenID           *string         `json:"tokenId"`
	IsMinting         bool            `json:"isMinting"`
	UploadError       bool            `json:"uploadError"`
	TranscodeError    bool            `json:"transcodeError"`
	MetadataURI       string          `json:"metadataUri"`
	MintRequestedAt   *time.Time      `json:"mintRequestedAt"`
	CreatorID         string          `json:"creatorId"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// State returns the processing state. Error flags take precedence over playback.
func (p Publish) State() PublishState {
	switch {
	case p.UploadError || p.TranscodeError:
		return StateErrored
	case p.Playback != nil:
		return StateReady
	default:
		return StateUploading
	}
}

func (p Publish) Minted() bool {
	return p.TokenID != nil && *p.TokenID != ""
}

// EffectiveThumbnailSource returns the explicit source, or custom when a custom URI exists, otherwise generated.
func (p Publish) EffectiveThumbnailSource() ThumbnailSource {
	if p.ThumbnailSource.Valid() {
		return p.ThumbnailSource
	}
	if p.ThumbnailURI != "" {
		return ThumbnailCustom
	}
	return ThumbnailGenerated
}

// TitleFromFilename strips directory and extension from a file name.
func TitleFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

type AccountType string

const (
	Custodial    AccountType = "custodial"
	NonCustodial AccountType = "non_custodial"
)

func (t AccountType) Valid() bool {
	return t == Custodial || t == NonCustodial
}

type Account struct {
	ID            string      `json:"id"`
	WalletAddress string      `json:"walletAddress"`
	Type          AccountType `json:"type"`
	Profiles      []Profile   `json:"profiles"`
}

// Owns reports whether profileID belongs to the account.
func (a Account) Owns(profileID string) bool {
	for _, p := range a.Profiles {
		if p.ID == profileID {
			return true
		}
	}
	return false
}

// DefaultProfile returns the default profile, or the first one if none is flagged.
func (a Account) DefaultProfile() (Profile, bool) {
	for _, p := range a.Profiles {
		if p.IsDefault {
			return p, true
		}
	}
	if len(a.Profiles) > 0 {
		return a.Profiles[0], true
	}
	return Profile{}, false
}

type Profile struct {
	ID        string  `json:"id"`
	Handle    string  `json:"handle"`
	ImageURI  string  `json:"imageUri"`
	IsDefault bool    `json:"isDefault"`
	Followers int     `json:"followers"`
	Following int     `json:"following"`
	Publishes int     `json:"publishes"`
	AccountID string  `json:"accountId"`
	TokenID   *string `json:"tokenId"`
}
