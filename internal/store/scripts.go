package store

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
)

var ErrScriptNotFound = errors.New("script not found")

// ValidationError marks an upload that was rejected before anything was
// persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// maxReplacementRunes bounds how many invalid UTF-8 bytes an upload may
// contain before it is treated as binary.
const maxReplacementRunes = 8

const maxTags = 20

var languageByExtension = map[string]string{
	".py":   "Python",
	".sh":   "Bash",
	".bash": "Bash",
	".ps1":  "PowerShell",
	".psm1": "PowerShell",
	".yml":  "YAML",
	".yaml": "YAML",
	".json": "JSON",
	".tf":   "Terraform",
	".go":   "Go",
	".js":   "JavaScript",
	".sql":  "SQL",
	".ini":  "Config",
	".conf": "Config",
	".cfg":  "Config",
	".md":   "Markdown",
	".txt":  "Text",
}

// Scripts is the per-owner script artifact library: one directory per
// artifact (content + metadata) mirrored by a single shared index file.
// Mutations rewrite the index, so they all serialize on one mutex; the
// in-memory index is the source of truth between writes and is only ever
// flushed to disk via atomic rename.
type Scripts struct {
	indexPath string
	filesDir  string
	maxBytes  int
	logger    *slog.Logger

	mu    sync.Mutex
	index map[string]map[string]domain.Script
}

func NewScripts(dataDir string, maxBytes int, logger *slog.Logger) (*Scripts, error) {
	s := &Scripts{
		indexPath: filepath.Join(dataDir, "scripts", "index.json"),
		filesDir:  filepath.Join(dataDir, "scripts", "files"),
		maxBytes:  maxBytes,
		logger:    logger,
		index:     make(map[string]map[string]domain.Script),
	}

	if _, err := readJSON(s.indexPath, &s.index); err != nil {
		return nil, err
	}
	if err := s.reconcile(); err != nil {
		return nil, err
	}
	return s, nil
}

// reconcile drops index entries whose content directory is gone. A crash
// between a directory delete and the index rewrite leaves at worst such a
// dangling entry; orphan directories are harmless and left alone.
func (s *Scripts) reconcile() error {
	dirty := false
	for owner, scripts := range s.index {
		for id := range scripts {
			if _, err := os.Stat(s.contentPath(owner, id)); os.IsNotExist(err) {
				s.logger.Warn("dropping index entry without content",
					slog.String("owner", owner), slog.String("id", id))
				delete(scripts, id)
				dirty = true
			}
		}
		if len(scripts) == 0 {
			delete(s.index, owner)
		}
	}
	if !dirty {
		return nil
	}
	return writeJSONAtomic(s.indexPath, s.index)
}

// Upload validates content, persists it under an owner-scoped path and
// updates the shared index. Rejected uploads leave no trace on disk.
func (s *Scripts) Upload(owner string, content []byte, originalName, name, language string, tags []string) (domain.Script, error) {
	if len(content) > s.maxBytes {
		return domain.Script{}, &ValidationError{Reason: "file too large"}
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return domain.Script{}, &ValidationError{Reason: "binary content not allowed"}
	}
	text := string(content)
	if invalidRunes(text) > maxReplacementRunes {
		return domain.Script{}, &ValidationError{Reason: "content is not valid text"}
	}

	if name == "" {
		name = originalName
	}
	if name == "" {
		name = "untitled"
	}
	if language == "" {
		language = languageFor(originalName)
	}

	now := time.Now().UTC()
	script := domain.Script{
		ID:           uuid.NewString(),
		Owner:        owner,
		Name:         name,
		OriginalName: originalName,
		Language:     language,
		Tags:         sanitizeTags(tags),
		SizeChars:    utf8.RuneCountInString(text),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.artifactDir(owner, script.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Script{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, "content.txt"), content, 0o644); err != nil {
		os.RemoveAll(dir)
		return domain.Script{}, err
	}
	if err := writeJSONAtomic(filepath.Join(dir, "meta.json"), script); err != nil {
		os.RemoveAll(dir)
		return domain.Script{}, err
	}

	if s.index[owner] == nil {
		s.index[owner] = make(map[string]domain.Script)
	}
	s.index[owner][script.ID] = script

	if err := writeJSONAtomic(s.indexPath, s.index); err != nil {
		delete(s.index[owner], script.ID)
		os.RemoveAll(dir)
		return domain.Script{}, err
	}

	s.logger.Info("script uploaded",
		slog.String("owner", owner),
		slog.String("id", script.ID),
		slog.String("language", script.Language),
		slog.Int("size_chars", script.SizeChars))
	return script, nil
}

// List returns owner's script metadata, most recently updated first.
func (s *Scripts) List(owner string) ([]domain.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scripts := make([]domain.Script, 0, len(s.index[owner]))
	for _, script := range s.index[owner] {
		scripts = append(scripts, script)
	}
	sort.Slice(scripts, func(i, j int) bool {
		if scripts[i].UpdatedAt.Equal(scripts[j].UpdatedAt) {
			return scripts[i].ID < scripts[j].ID
		}
		return scripts[i].UpdatedAt.After(scripts[j].UpdatedAt)
	})
	return scripts, nil
}

// Get returns metadata and content for one script.
func (s *Scripts) Get(owner, id string) (domain.Script, string, error) {
	s.mu.Lock()
	script, ok := s.index[owner][id]
	s.mu.Unlock()
	if !ok {
		return domain.Script{}, "", ErrScriptNotFound
	}

	content, err := os.ReadFile(s.contentPath(owner, id))
	if os.IsNotExist(err) {
		return domain.Script{}, "", ErrScriptNotFound
	}
	if err != nil {
		return domain.Script{}, "", err
	}
	return script, string(content), nil
}

// Delete removes content and index entry together. The directory goes first,
// so a crash in between leaves an orphan directory rather than an index
// entry pointing at nothing.
func (s *Scripts) Delete(owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[owner][id]; !ok {
		return ErrScriptNotFound
	}

	if err := os.RemoveAll(s.artifactDir(owner, id)); err != nil {
		return err
	}

	delete(s.index[owner], id)
	if len(s.index[owner]) == 0 {
		delete(s.index, owner)
	}
	if err := writeJSONAtomic(s.indexPath, s.index); err != nil {
		return err
	}

	s.logger.Info("script deleted", slog.String("owner", owner), slog.String("id", id))
	return nil
}

func (s *Scripts) artifactDir(owner, id string) string {
	return filepath.Join(s.filesDir, owner, id)
}

func (s *Scripts) contentPath(owner, id string) string {
	return filepath.Join(s.artifactDir(owner, id), "content.txt")
}

func languageFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "Text"
}

func invalidRunes(text string) int {
	count := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			count++
		}
		i += size
	}
	return count
}

func sanitizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		clean = append(clean, tag)
		if len(clean) == maxTags {
			break
		}
	}
	return clean
}
