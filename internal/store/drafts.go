package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const draftExt = ".md"

// ErrDraftNotFound is returned when a named draft does not exist.
var ErrDraftNotFound = errors.New("draft not found")

// Draft describes a locally saved document.
type Draft struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Updated time.Time `json:"updated"`
}

var (
	unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._-]+|\.{2,}`)
	dashRun    = regexp.MustCompile(`-{2,}`)
)

// DraftName turns an arbitrary label into a safe file stem.
func DraftName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), draftExt)
	name = unsafeName.ReplaceAllString(name, "-")
	name = dashRun.ReplaceAllString(name, "-")
	name = strings.Trim(name, ".-")
	if name == "" {
		return "untitled"
	}
	return name
}

func (s *Store) draftPath(name string) string {
	return s.Path("drafts", DraftName(name)+draftExt)
}

// SaveDraft writes text under name, replacing any previous draft. The write
// goes through a temp file so a crash never leaves a truncated draft.
func (s *Store) SaveDraft(name, text string) error {
	dir := s.Path("drafts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create drafts directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".draft-*")
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save draft: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save draft: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.draftPath(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the text of a saved draft.
func (s *Store) LoadDraft(name string) (string, error) {
	data, err := os.ReadFile(s.draftPath(name))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrDraftNotFound, DraftName(name))
	}
	if err != nil {
		return "", fmt.Errorf("failed to read draft: %w", err)
	}
	return string(data), nil
}

// ListDrafts returns saved drafts, most recently updated first.
func (s *Store) ListDrafts() ([]Draft, error) {
	entries, err := os.ReadDir(s.Path("drafts"))
	if os.IsNotExist(err) {
		return []Draft{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	drafts := []Draft{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != draftExt || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		drafts = append(drafts, Draft{
			Name:    strings.TrimSuffix(e.Name(), draftExt),
			Size:    info.Size(),
			Updated: info.ModTime(),
		})
	}
	sort.Slice(drafts, func(i, j int) bool {
		if drafts[i].Updated.Equal(drafts[j].Updated) {
			return drafts[i].Name < drafts[j].Name
		}
		return drafts[i].Updated.After(drafts[j].Updated)
	})
	return drafts, nil
}

// DeleteDraft removes a saved draft.
func (s *Store) DeleteDraft(name string) error {
	err := os.Remove(s.draftPath(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, DraftName(name))
	}
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
