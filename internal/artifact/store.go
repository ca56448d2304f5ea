// Package artifact persists the vocabulary, padding width and model produced
// by training so the server can rebuild the exact same inference path.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spam-detector/internal/vocab"

	"gopkg.in/yaml.v3"
)

// File names inside the artifact directory
const (
	VocabularyFile = "vocabulary.json"
	ModelFile      = "model.msgpack"
	ManifestFile   = "manifest.yaml"
)

var (
	// ErrArtifactMissing is returned when any artifact file is absent
	ErrArtifactMissing = errors.New("artifact: missing")
	// ErrArtifactCorrupt is returned when artifacts cannot be decoded or disagree
	ErrArtifactCorrupt = errors.New("artifact: corrupt")
)

// Manifest records the padding width and metadata that tie the vocabulary to the model
type Manifest struct {
	MaxLen           int       `yaml:"max_len"`
	VocabSize        int       `yaml:"vocab_size"`
	EmbeddingDim     int       `yaml:"embedding_dim"`
	VocabularySHA256 string    `yaml:"vocabulary_sha256"`
	ModelSHA256      string    `yaml:"model_sha256"`
	RunID            string    `yaml:"run_id"`
	State            string    `yaml:"state"`
	Epochs           int       `yaml:"epochs"`
	SuccessRate      float64   `yaml:"success_rate"`
	CreatedAt        time.Time `yaml:"created_at"`
}

// Artifacts is everything the inference path needs
type Artifacts struct {
	Vocabulary *vocab.Vocabulary
	MaxLen     int
	Model      []byte // opaque classifier blob
	Manifest   Manifest
}

// Store saves and loads a set of artifacts
type Store interface {
	Save(a *Artifacts) error
	Load() (*Artifacts, error)
}

// FileStore keeps artifacts as three files in one directory
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the artifact directory
func (s *FileStore) Dir() string { return s.dir }

// Save writes vocabulary, model and manifest. The manifest carries checksums
// of the other two files, so a set left mixed by an interrupted save fails to load.
func (s *FileStore) Save(a *Artifacts) error {
	if a == nil || a.Vocabulary == nil {
		return fmt.Errorf("artifact: nothing to save")
	}
	if a.MaxLen < 0 {
		return fmt.Errorf("artifact: negative max_len %d", a.MaxLen)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}

	vocabJSON, err := json.MarshalIndent(a.Vocabulary.Index(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}

	manifest := a.Manifest
	manifest.MaxLen = a.MaxLen
	manifest.VocabSize = a.Vocabulary.Len()
	manifest.VocabularySHA256 = checksum(vocabJSON)
	manifest.ModelSHA256 = checksum(a.Model)
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now().UTC()
	}
	manifestYAML, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	// manifest must stay last
	for _, f := range []struct {
		name string
		data []byte
	}{
		{VocabularyFile, vocabJSON},
		{ModelFile, a.Model},
		{ManifestFile, manifestYAML},
	} {
		if err := s.writeFile(f.name, f.data); err != nil {
			return err
		}
	}

	a.Manifest = manifest
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *FileStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrArtifactCorrupt, name, err)
	}
	return data, nil
}

// Load reads all three artifacts and checks they belong together
func (s *FileStore) Load() (*Artifacts, error) {
	manifestYAML, err := s.readFile(ManifestFile)
	if err != nil {
		return nil, err
	}
	vocabJSON, err := s.readFile(VocabularyFile)
	if err != nil {
		return nil, err
	}
	model, err := s.readFile(ModelFile)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestYAML, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrArtifactCorrupt, err)
	}
	if manifest.MaxLen < 0 {
		return nil, fmt.Errorf("%w: negative max_len %d", ErrArtifactCorrupt, manifest.MaxLen)
	}

	if checksum(vocabJSON) != manifest.VocabularySHA256 {
		return nil, fmt.Errorf("%w: vocabulary checksum mismatch", ErrArtifactCorrupt)
	}
	var index map[string]int
	if err := json.Unmarshal(vocabJSON, &index); err != nil {
		return nil, fmt.Errorf("%w: vocabulary: %v", ErrArtifactCorrupt, err)
	}
	v, err := vocab.FromIndex(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if v.Len() != manifest.VocabSize {
		return nil, fmt.Errorf("%w: vocabulary has %d tokens, manifest says %d", ErrArtifactCorrupt, v.Len(), manifest.VocabSize)
	}

	if checksum(model) != manifest.ModelSHA256 {
		return nil, fmt.Errorf("%w: model checksum mismatch", ErrArtifactCorrupt)
	}

	return &Artifacts{
		Vocabulary: v,
		MaxLen:     manifest.MaxLen,
		Model:      model,
		Manifest:   manifest,
	}, nil
}
