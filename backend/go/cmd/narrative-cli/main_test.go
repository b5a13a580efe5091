package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/internal/pipeline"
	"NarrativeScout/backend/go/internal/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportPath(t *testing.T) {
	assert.Equal(t, "output/report.md", reportPath("output/report.html", "markdown"))
	assert.Equal(t, "output/report.html", reportPath("output/report.html", "html"))
	assert.Equal(t, "notes.txt", reportPath("notes.txt", "markdown"))
}

func TestPrintSummary(t *testing.T) {
	res := &pipeline.Result{
		Signals: []models.Signal{
			{Source: models.SourceGitHub}, {Source: models.SourceSocial}, {Source: models.SourceGitHub},
		},
		Narratives: []models.Narrative{{Title: "a"}},
		Ideas:      []models.BuildIdea{{Title: "x"}, {Title: "y"}},
	}

	var buf bytes.Buffer
	printSummary(&buf, "output/report.html", res)

	assert.Equal(t, "Report generated: output/report.html\n"+
		"  3 signals from 2 sources\n"+
		"  1 narratives identified\n"+
		"  2 build ideas generated\n", buf.String())
}

func writeConfig(t *testing.T, blogURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: ollama
  model: llama3
logger:
  level: error
sources:
  solana:
    enabled: false
  social:
    sources:
      - name: Helius
        url: ` + blogURL + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeSignals(t *testing.T, args ...string) (string, error) {
	t.Helper()
	xlsxPath = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"signals"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSignalsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><article><h2><a href="/1">Solana validators upgrade</a></h2></article></body></html>`)
	}))
	defer srv.Close()

	xlsx := filepath.Join(t.TempDir(), "signals.xlsx")
	out, err := executeSignals(t, "-c", writeConfig(t, srv.URL), "--xlsx", xlsx)
	require.NoError(t, err)

	var signals []models.Signal
	require.NoError(t, json.Unmarshal([]byte(out), &signals))
	require.Len(t, signals, 1)
	assert.Equal(t, models.SourceSocial, signals[0].Source)
	assert.Equal(t, "Helius: 1 recent articles (1 Solana-related)", signals[0].Title)

	_, err = os.Stat(xlsx)
	assert.NoError(t, err)
}

func TestSignalsCommand_AllCollectorsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := executeSignals(t, "-c", writeConfig(t, srv.URL))
	assert.True(t, errors.Is(err, sources.ErrNoSignals), "err = %v", err)
}

func TestSignalsCommand_MissingConfig(t *testing.T) {
	_, err := executeSignals(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "loading config")
}
