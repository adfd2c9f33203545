package storage

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"iracingtelemetry/pkg/session"
)

// ErrNotFound is returned when no persisted session matches the requested id.
var ErrNotFound = errors.New("session not found")

// Summary is one row of the session listing.
type Summary struct {
	Filepath string
	Metadata session.Metadata
	// Duration is the sum of the completed lap times.
	Duration float64
}

// ListAll scans baseDir for persisted session records, newest first. Corrupt
// or unreadable files are skipped, never fatal to the scan.
func ListAll(baseDir string) ([]Summary, error) {
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return nil, nil
	}

	var summaries []Summary
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		sess, readErr := readRecord(path)
		if readErr != nil {
			return nil
		}
		summaries = append(summaries, Summary{
			Filepath: path,
			Metadata: sess.Metadata,
			Duration: sess.Duration(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", baseDir)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Metadata.Timestamp > summaries[j].Metadata.Timestamp
	})
	return summaries, nil
}

// LoadByID loads a persisted session matched by its full id or an id prefix.
// The first match wins when several records share the prefix.
func LoadByID(baseDir, idOrPrefix string) (*session.Session, string, error) {
	if idOrPrefix == "" {
		return nil, "", ErrNotFound
	}
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return nil, "", ErrNotFound
	}

	var found *session.Session
	var foundPath string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if found != nil {
			return fs.SkipAll
		}
		sess, readErr := readRecord(path)
		if readErr != nil {
			return nil
		}
		if strings.HasPrefix(sess.Metadata.SessionID, idOrPrefix) {
			found = sess
			foundPath = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrapf(err, "scanning %s", baseDir)
	}
	if found == nil {
		return nil, "", ErrNotFound
	}
	return found, foundPath, nil
}

func readRecord(path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	if sess.Metadata.SessionID == "" {
		return nil, errors.New("record has no session id")
	}
	return &sess, nil
}
