package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behemotion/docbro/internal/model"
	"github.com/behemotion/docbro/internal/report"
)

func newSession(t *testing.T) model.CrawlSession {
	t.Helper()
	now := time.Now().UTC()
	sess := model.NewCrawlSession("sess-1", "proj-1", 2, "docbro/1.0", 1.0, 30*time.Second, 0, now)
	require.NoError(t, sess.Start(now))
	sess.RecordDiscovery(1, 0, now)
	sess.RecordCrawled(512, now.Add(time.Second))
	sess.Complete(now.Add(2 * time.Second))
	return sess
}

func TestReporter_HasErrors_InitiallyFalse(t *testing.T) {
	p := model.NewProject("proj-1", "docs", "https://example.com/", 2, "")
	r := report.NewReporter(t.TempDir(), p, nil)
	assert.False(t, r.HasErrors())
}

func TestReporter_AddError_TracksEntries(t *testing.T) {
	p := model.NewProject("proj-1", "docs", "https://example.com/", 2, "")
	r := report.NewReporter(t.TempDir(), p, nil)

	r.AddError("https://example.com/a", model.ErrorKindNetwork, "connection reset", 0, 1, false)
	require.True(t, r.HasErrors())
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, model.ErrorKindNetwork, r.Errors()[0].Kind())
}

func TestReporter_AddError_IncludeTraceCapturesStack(t *testing.T) {
	p := model.NewProject("proj-1", "docs", "https://example.com/", 2, "")
	r := report.NewReporter(t.TempDir(), p, nil)

	r.AddError("https://example.com/a", model.ErrorKindUnknown, "boom", 500, 0, true)
	assert.NotEmpty(t, r.Errors()[0].StackTrace())
}

func TestReporter_SaveReport_WritesAllFourFiles(t *testing.T) {
	base := t.TempDir()
	p := model.NewProject("proj-1", "docs", "https://example.com/", 2, "")
	r := report.NewReporter(base, p, nil)
	r.AddError("https://example.com/a", model.ErrorKindTimeout, "timed out", 0, 2, false)

	sess := newSession(t)
	jsonPath, textPath, err := r.SaveReport(sess)
	require.NoError(t, err)

	for _, path := range []string{
		jsonPath,
		textPath,
		filepath.Join(base, "projects", "docs", "reports", "report_latest.json"),
		filepath.Join(base, "projects", "docs", "reports", "report_latest.txt"),
	} {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "expected %s to exist", path)
	}

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded model.CrawlReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "proj-1", decoded.ProjectID)
	assert.Len(t, decoded.Errors, 1)

	text, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "DocBro Crawl Report")
	assert.Contains(t, string(text), "timed out")
}

func TestReporter_SaveReport_NoErrorsStillWritesReport(t *testing.T) {
	base := t.TempDir()
	p := model.NewProject("proj-1", "docs", "https://example.com/", 2, "")
	r := report.NewReporter(base, p, nil)

	sess := newSession(t)
	jsonPath, textPath, err := r.SaveReport(sess)
	require.NoError(t, err)
	assert.FileExists(t, jsonPath)
	assert.FileExists(t, textPath)
}

func TestReporter_SaveReport_SanitizesProjectNameForPath(t *testing.T) {
	base := t.TempDir()
	p := model.NewProject("proj-1", "docs/weird", "https://example.com/", 2, "")
	r := report.NewReporter(base, p, nil)

	sess := newSession(t)
	jsonPath, _, err := r.SaveReport(sess)
	require.NoError(t, err)
	assert.Contains(t, jsonPath, "docs_weird")
}

func TestDefaultBaseDir_UsesXDGDataHomeWhenSet(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := report.DefaultBaseDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-data", "docbro"), dir)
}
