// Package artifacts manages files produced by portal downloads: it waits
// for the browser to finish writing them, claims them under stable names
// and validates PDF documents before they are handed back to callers.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// ErrInvalidArtifact means the downloaded file cannot be handed to the
// caller: it is empty, or claims to be a PDF and is not one. The portal
// serves error pages under document names, so this is a real case.
var ErrInvalidArtifact = errors.New("downloaded file is not a usable document")

// Artifact describes one claimed download
type Artifact struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	LocalPath string    `json:"local_path"`
	SizeBytes int64     `json:"size_bytes"`
	Pages     int       `json:"pages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store owns a directory of claimed artifacts
type Store struct {
	dir string

	mu    sync.Mutex
	items map[string]Artifact
}

// NewStore creates the artifact directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{
		dir:   dir,
		items: make(map[string]Artifact),
	}, nil
}

// Dir returns the artifact directory
func (s *Store) Dir() string {
	return s.dir
}

// Claim moves a completed download into the store under a collision-free
// name and registers it. The label becomes part of the stored filename so
// the directory stays readable.
func (s *Store) Claim(downloadedPath, label string) (Artifact, error) {
	info, err := os.Stat(downloadedPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("downloaded file not accessible: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(downloadedPath)
		return Artifact{}, fmt.Errorf("%w: %s is empty", ErrInvalidArtifact, filepath.Base(downloadedPath))
	}

	suffix, err := gonanoid.New(8)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to generate artifact name: %w", err)
	}

	ext := filepath.Ext(downloadedPath)
	name := fmt.Sprintf("%s-%s%s", sanitizeLabel(label), suffix, ext)
	dest := filepath.Join(s.dir, name)

	if err := os.Rename(downloadedPath, dest); err != nil {
		return Artifact{}, fmt.Errorf("failed to claim download: %w", err)
	}

	art := Artifact{
		ID:        uuid.New().String(),
		Label:     label,
		LocalPath: dest,
		SizeBytes: info.Size(),
		CreatedAt: time.Now(),
	}

	if strings.EqualFold(ext, ".pdf") {
		pages, err := PDFPageCount(dest)
		if err != nil {
			_ = os.Remove(dest)
			return Artifact{}, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		art.Pages = pages
	}

	s.mu.Lock()
	s.items[art.ID] = art
	s.mu.Unlock()

	log.Info().
		Str("artifact_id", art.ID).
		Str("label", label).
		Int64("size_bytes", art.SizeBytes).
		Msg("Artifact claimed")
	return art, nil
}

// Get looks up a claimed artifact by ID
func (s *Store) Get(id string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	art, ok := s.items[id]
	return art, ok
}

// List returns all claimed artifacts
func (s *Store) List() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, 0, len(s.items))
	for _, art := range s.items {
		out = append(out, art)
	}
	return out
}

// Discard removes a claimed artifact and its file
func (s *Store) Discard(id string) error {
	s.mu.Lock()
	art, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown artifact: %s", id)
	}
	if err := os.Remove(art.LocalPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact file: %w", err)
	}
	return nil
}

// Purge removes every claimed artifact. Called on shutdown so stale
// portal documents do not accumulate between runs.
func (s *Store) Purge() {
	s.mu.Lock()
	items := s.items
	s.items = make(map[string]Artifact)
	s.mu.Unlock()

	for _, art := range items {
		if err := os.Remove(art.LocalPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", art.LocalPath).Msg("Failed to purge artifact")
		}
	}
	if len(items) > 0 {
		log.Info().Int("count", len(items)).Msg("Artifacts purged")
	}
}

func sanitizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "documento"
	}
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
