package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScripts(t *testing.T) (*Scripts, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewScripts(dir, 1024, testLogger())
	require.NoError(t, err)
	return s, dir
}

func TestScriptsLifecycle(t *testing.T) {
	s, dir := newTestScripts(t)

	content := []byte("import sys\n\nprint(sys.argv)\nprint(\"done!\")\n")
	script, err := s.Upload("alice", content, "check.py", "", "", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, script.ID)
	assert.Equal(t, "alice", script.Owner)
	assert.Equal(t, "check.py", script.Name)
	assert.Equal(t, "check.py", script.OriginalName)
	assert.Equal(t, "Python", script.Language)
	assert.Equal(t, len(content), script.SizeChars)

	list, err := s.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, script.ID, list[0].ID)

	got, body, err := s.Get("alice", script.ID)
	require.NoError(t, err)
	assert.Equal(t, script.ID, got.ID)
	assert.Equal(t, string(content), body)

	// Content and metadata live under the owner/id scoped directory.
	assert.FileExists(t, filepath.Join(dir, "scripts", "files", "alice", script.ID, "content.txt"))
	assert.FileExists(t, filepath.Join(dir, "scripts", "files", "alice", script.ID, "meta.json"))

	require.NoError(t, s.Delete("alice", script.ID))

	list, err = s.List("alice")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, _, err = s.Get("alice", script.ID)
	assert.ErrorIs(t, err, ErrScriptNotFound)
	assert.NoDirExists(t, filepath.Join(dir, "scripts", "files", "alice", script.ID))

	assert.ErrorIs(t, s.Delete("alice", script.ID), ErrScriptNotFound)
}

func TestScriptsUploadRejection(t *testing.T) {
	assertNoTrace := func(t *testing.T, dir string) {
		t.Helper()
		entries, err := os.ReadDir(filepath.Join(dir, "scripts", "files"))
		if err == nil {
			assert.Empty(t, entries, "rejected upload must not leave content behind")
		}
		assert.NoFileExists(t, filepath.Join(dir, "scripts", "index.json"))
	}

	t.Run("null byte", func(t *testing.T) {
		s, dir := newTestScripts(t)
		_, err := s.Upload("alice", []byte("#!/bin/sh\x00\nexit"), "run.sh", "", "", nil)

		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assertNoTrace(t, dir)
	})

	t.Run("oversized", func(t *testing.T) {
		s, dir := newTestScripts(t)
		_, err := s.Upload("alice", bytes.Repeat([]byte("a"), 2048), "big.txt", "", "", nil)

		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assertNoTrace(t, dir)
	})

	t.Run("too many invalid bytes", func(t *testing.T) {
		s, dir := newTestScripts(t)
		content := append([]byte("mostly text "), bytes.Repeat([]byte{0xff}, maxReplacementRunes+1)...)
		_, err := s.Upload("alice", content, "junk.txt", "", "", nil)

		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assertNoTrace(t, dir)
	})

	t.Run("a few invalid bytes are tolerated", func(t *testing.T) {
		s, _ := newTestScripts(t)
		content := append([]byte("mostly text "), 0xff, 0xfe)
		_, err := s.Upload("alice", content, "almost.txt", "", "", nil)
		require.NoError(t, err)
	})
}

func TestScriptsLanguageDetection(t *testing.T) {
	s, _ := newTestScripts(t)

	cases := map[string]string{
		"deploy.sh":    "Bash",
		"fix.ps1":      "PowerShell",
		"main.tf":      "Terraform",
		"vars.yaml":    "YAML",
		"query.sql":    "SQL",
		"notes.md":     "Markdown",
		"weird.xyz123": "Text",
		"no-extension": "Text",
	}
	for filename, want := range cases {
		t.Run(filename, func(t *testing.T) {
			script, err := s.Upload("alice", []byte("content"), filename, "", "", nil)
			require.NoError(t, err)
			assert.Equal(t, want, script.Language)
		})
	}

	t.Run("explicit language wins", func(t *testing.T) {
		script, err := s.Upload("alice", []byte("content"), "check.py", "", "Jython", nil)
		require.NoError(t, err)
		assert.Equal(t, "Jython", script.Language)
	})
}

func TestScriptsTags(t *testing.T) {
	s, _ := newTestScripts(t)

	t.Run("deduped preserving order", func(t *testing.T) {
		script, err := s.Upload("alice", []byte("x"), "a.txt", "", "",
			[]string{"prod", " net ", "prod", "", "net"})
		require.NoError(t, err)
		assert.Equal(t, []string{"prod", "net"}, script.Tags)
	})

	t.Run("capped", func(t *testing.T) {
		tags := make([]string, maxTags+5)
		for i := range tags {
			tags[i] = fmt.Sprintf("tag-%d", i)
		}
		script, err := s.Upload("alice", []byte("x"), "b.txt", "", "", tags)
		require.NoError(t, err)
		assert.Len(t, script.Tags, maxTags)
	})
}

func TestScriptsListOrdering(t *testing.T) {
	s, _ := newTestScripts(t)

	first, err := s.Upload("alice", []byte("1"), "first.txt", "", "", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Upload("alice", []byte("2"), "second.txt", "", "", nil)
	require.NoError(t, err)

	list, err := s.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recently updated first")
	assert.Equal(t, first.ID, list[1].ID)
}

func TestScriptsOwnerIsolation(t *testing.T) {
	s, _ := newTestScripts(t)

	script, err := s.Upload("alice", []byte("secret"), "a.txt", "", "", nil)
	require.NoError(t, err)

	_, _, err = s.Get("bob", script.ID)
	assert.ErrorIs(t, err, ErrScriptNotFound)
	assert.ErrorIs(t, s.Delete("bob", script.ID), ErrScriptNotFound)

	list, err := s.List("bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScriptsIndexConsistency(t *testing.T) {
	s, dir := newTestScripts(t)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			script, err := s.Upload("alice", []byte(fmt.Sprintf("content %d", i)), fmt.Sprintf("s%d.sh", i), "", "", nil)
			assert.NoError(t, err)
			ids[i] = script.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Delete("alice", ids[i]))
	}

	list, err := s.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 5)

	// Every index entry must have a content directory and vice versa.
	ownerDir := filepath.Join(dir, "scripts", "files", "alice")
	entries, err := os.ReadDir(ownerDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	for _, script := range list {
		assert.DirExists(t, filepath.Join(ownerDir, script.ID))
	}
}

func TestScriptsReconcileOnStartup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewScripts(dir, 1024, testLogger())
	require.NoError(t, err)

	kept, err := s.Upload("alice", []byte("keep"), "keep.sh", "", "", nil)
	require.NoError(t, err)
	lost, err := s.Upload("alice", []byte("lose"), "lose.sh", "", "", nil)
	require.NoError(t, err)

	// Simulate a crash between the directory delete and the index rewrite.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "scripts", "files", "alice", lost.ID)))

	reopened, err := NewScripts(dir, 1024, testLogger())
	require.NoError(t, err)

	list, err := reopened.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)
}

func TestInvalidRunes(t *testing.T) {
	assert.Equal(t, 0, invalidRunes("plain ascii"))
	assert.Equal(t, 0, invalidRunes("unicode é世界"))
	assert.Equal(t, 3, invalidRunes(string([]byte{'a', 0xff, 0xfe, 0xfd, 'b'})))
	assert.Equal(t, 0, invalidRunes(strings.Repeat("�", 3)), "a literal replacement rune is valid UTF-8")
}
