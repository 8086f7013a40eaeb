package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ImageURLPrefix is the path under which stored images are served.
const ImageURLPrefix = "/images/"

// Image is an uploaded binary. Posts and users reference it by URL only, so whoever drops the
// reference must delete the row.
type Image struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Data        []byte    `gorm:"not null" json:"-"`
	ContentType string    `gorm:"size:50;not null" json:"contentType"`
	FileName    string    `gorm:"size:255" json:"fileName,omitempty"`
	UploaderID  uint      `gorm:"index" json:"uploaderId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (Image) TableName() string {
	return "images"
}

// URL returns the reference stored on posts and users.
func (i *Image) URL() string {
	return ImageURL(i.ID)
}

// ImageURL formats an image reference.
func ImageURL(id uint) string {
	return fmt.Sprintf("%s%d", ImageURLPrefix, id)
}

// ParseImageURL extracts the image id from a reference. Anything else (the default avatar, an
// external URL) is reported as not ours.
func ParseImageURL(ref string) (uint, bool) {
	raw, ok := strings.CutPrefix(ref, ImageURLPrefix)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ImageIDs returns the ids of the references that point at stored images.
func ImageIDs(refs []string) []uint {
	ids := make([]uint, 0, len(refs))
	for _, ref := range refs {
		if id, ok := ParseImageURL(ref); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
