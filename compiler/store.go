package compiler

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ArtifactStore keeps one artifact file per pipeline in a directory shared
// with the engine.
type ArtifactStore struct {
	fs  afero.Fs
	dir string
	ext string
}

func NewArtifactStore(fs afero.Fs, dir string, ext string) *ArtifactStore {
	return &ArtifactStore{fs: fs, dir: dir, ext: ext}
}

func (s *ArtifactStore) Path(pipelineId string) string {
	return filepath.Join(s.dir, pipelineId+s.ext)
}

// Write replaces the artifact as a whole. Data goes to a temporary file in the
// same directory which is then renamed over the target, so readers never see
// a partial file.
func (s *ArtifactStore) Write(pipelineId string, data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := s.Path(pipelineId)
	tmp, err := afero.TempFile(s.fs, s.dir, "."+pipelineId+"-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = s.fs.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", err
	}
	if err := s.fs.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", err
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return "", err
	}
	return path, nil
}

// Remove deletes the artifact. It reports whether a file existed.
func (s *ArtifactStore) Remove(pipelineId string) (bool, error) {
	err := s.fs.Remove(s.Path(pipelineId))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *ArtifactStore) Exists(pipelineId string) (bool, error) {
	return afero.Exists(s.fs, s.Path(pipelineId))
}

func (s *ArtifactStore) Read(pipelineId string) ([]byte, error) {
	return afero.ReadFile(s.fs, s.Path(pipelineId))
}
