package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
)

// Source records what produced a revision.
type Source string

const (
	SourceApply  Source = "apply"  // config sent to the running engine
	SourceSave   Source = "save"   // config written to a file on the backend
	SourceImport Source = "import" // result of an import merge
)

// Revision is an archived config document.
type Revision struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Source    Source    `gorm:"size:16;index" json:"source"`
	Filename  string    `gorm:"size:255" json:"filename,omitempty"`
	Title     string    `gorm:"size:255" json:"title,omitempty"`
	Checksum  string    `gorm:"size:64;index" json:"checksum"`
	Content   string    `gorm:"type:text" json:"content,omitempty"`
}

// NewRevision serializes cfg into a revision.
func NewRevision(cfg *dspconfig.Config, source Source, filename string) (*Revision, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	rev := &Revision{
		Source:   source,
		Filename: filename,
		Checksum: Checksum(data),
		Content:  string(data),
	}
	if cfg.Title != nil {
		rev.Title = *cfg.Title
	}
	return rev, nil
}

// Config parses the archived document.
func (r *Revision) Config() (*dspconfig.Config, error) {
	return dspconfig.Parse([]byte(r.Content))
}

// Checksum returns the hex encoded SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
