package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/integridade/internal/model"
)

type mockAnalyzer struct {
	failOn string
}

func (m *mockAnalyzer) AnalyzeFile(ctx context.Context, path string) (*model.Report, error) {
	if m.failOn != "" && strings.Contains(path, m.failOn) {
		return nil, errors.New("unreadable file")
	}
	return &model.Report{Source: path}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBatchProcessor_ProcessFiles(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{failOn: "broken"}, 2)
	paths := []string{"a.csv", "broken.csv", "c.xlsx"}

	results := processor.ProcessFiles(context.Background(), paths)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.NoError(t, results[0].GetError())
	assert.Equal(t, "a.csv", results[0].Report.Source)
	assert.EqualError(t, results[1].GetError(), "unreadable file")
	assert.Nil(t, results[1].Report)
	assert.NoError(t, results[2].GetError())
}

func TestBatchProcessor_ProcessFiles_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{}, 2)
	assert.Empty(t, processor.ProcessFiles(context.Background(), nil))
}

func TestBatchProcessor_ProcessFiles_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&mockAnalyzer{}, 2)
	results := processor.ProcessFiles(ctx, []string{"a.csv", "b.csv"})
	require.Len(t, results, 2)
	for _, r := range results {
		// A job may still have been picked up before cancellation was observed
		if r.Report == nil {
			assert.ErrorIs(t, r.Error, context.Canceled)
		}
	}
}

func TestReadPathsFromFile(t *testing.T) {
	list := filepath.Join(t.TempDir(), "ficheiros.txt")
	writeFile(t, list, "dados/2023.csv\n# comment\n\n  dados/2024.xlsx  \ndados/2023.csv\n")

	paths, err := ReadPathsFromFile(list)
	require.NoError(t, err)
	assert.Equal(t, []string{"dados/2023.csv", "dados/2024.xlsx"}, paths)
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	_, err := ReadPathsFromFile("no_such_file.txt")
	assert.Error(t, err)
}

func TestBatchProcessor_ProcessList(t *testing.T) {
	list := filepath.Join(t.TempDir(), "list.txt")
	writeFile(t, list, "a.csv\nb.csv\n")

	results, err := NewBatchProcessor(&mockAnalyzer{}, 1).ProcessList(context.Background(), list)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = NewBatchProcessor(&mockAnalyzer{}, 1).ProcessList(context.Background(), "missing.txt")
	assert.Error(t, err)
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.csv"), "")
	writeFile(t, filepath.Join(dir, "a.XLSX"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	extra := filepath.Join(t.TempDir(), "extra.csv")
	writeFile(t, extra, "")

	got, err := ExpandInputs([]string{dir, extra, filepath.Join(dir, "b.csv")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.XLSX"), filepath.Join(dir, "b.csv"), extra}, got)

	_, err = ExpandInputs([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
