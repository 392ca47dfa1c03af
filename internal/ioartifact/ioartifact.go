// Package ioartifact keeps pipeline artifacts as files in a data
// directory. Stages write to hidden temporary files in the same
// directory, and a commit renames them in place, so an artifact is either
// complete or absent.
package ioartifact

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gnames/bioclim/pkg/pipeline"
)

const fingerprintDir = ".fingerprints"

type store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created if needed.
func New(dir string) (pipeline.Store, error) {
	fpDir := filepath.Join(dir, fingerprintDir)
	if err := os.MkdirAll(fpDir, 0755); err != nil {
		return nil, WriteError(fpDir, err)
	}
	return &store{dir: dir}, nil
}

func (s *store) Exists(a pipeline.Artifact) (bool, error) {
	path := s.Path(a)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ReadError(path, err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *store) Path(a pipeline.Artifact) string {
	return filepath.Join(s.dir, a.Name)
}

func (s *store) TempPath(a pipeline.Artifact) (string, error) {
	f, err := os.CreateTemp(s.dir, "."+a.Name+".*.tmp")
	if err != nil {
		return "", WriteError(s.dir, err)
	}
	path := f.Name()
	if err = f.Close(); err != nil {
		return "", WriteError(path, err)
	}
	return path, nil
}

func (s *store) Commit(a pipeline.Artifact, tmp string) error {
	info, err := os.Stat(tmp)
	if err != nil {
		return CommitError(a.Name, err)
	}
	if !info.Mode().IsRegular() {
		return CommitError(a.Name, errors.New("output is not a regular file"))
	}
	if err = os.Rename(tmp, s.Path(a)); err != nil {
		return CommitError(a.Name, err)
	}
	return nil
}

func (s *store) Discard(tmp string) error {
	err := os.Remove(tmp)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WriteError(tmp, err)
	}
	return nil
}

func (s *store) Remove(a pipeline.Artifact) error {
	for _, path := range []string{s.Path(a), s.fingerprintPath(a)} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return WriteError(path, err)
		}
	}
	return nil
}

func (s *store) Fingerprint(a pipeline.Artifact) (string, error) {
	path := s.fingerprintPath(a)
	bs, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", ReadError(path, err)
	}
	return strings.TrimSpace(string(bs)), nil
}

func (s *store) SetFingerprint(a pipeline.Artifact, fp string) error {
	path := s.fingerprintPath(a)
	if err := os.WriteFile(path, []byte(fp+"\n"), 0644); err != nil {
		return WriteError(path, err)
	}
	return nil
}

func (s *store) fingerprintPath(a pipeline.Artifact) string {
	return filepath.Join(s.dir, fingerprintDir, a.Name)
}

// ReadLines returns non-empty trimmed lines of a text artifact.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadError(path, err)
	}
	defer f.Close()

	var res []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			res = append(res, line)
		}
	}
	if err = sc.Err(); err != nil {
		return nil, ReadError(path, err)
	}
	return res, nil
}

// WriteLines writes values one per line.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return WriteError(path, err)
	}
	w := bufio.NewWriter(f)
	for _, v := range lines {
		if _, err = w.WriteString(v + "\n"); err != nil {
			f.Close()
			return WriteError(path, err)
		}
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return WriteError(path, err)
	}
	if err = f.Close(); err != nil {
		return WriteError(path, err)
	}
	return nil
}
