package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/adblock-dashboard/internal/dashboard"
	"github.com/bnema/adblock-dashboard/internal/download"
	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := newLogger(models.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closeLog()

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, _, err = newLogger(models.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	store := dashboard.NewStore(engine.NewAdapter(0))
	store.Apply(dashboard.FilterListTextChanged{Text: "! Title: Test\n||ads.example^"})
	require.True(t, store.Flush())
	store.Apply(dashboard.FilterTextChanged{Text: "||ads.example^"})
	store.Apply(dashboard.NetworkURLChanged{Text: "https://ads.example/x"})
	store.Apply(dashboard.NetworkSourceChanged{Text: "https://site.test"})
	store.Apply(dashboard.NetworkTypeChanged{Text: "script"})

	var buf bytes.Buffer
	printReport(&buf, store.State(), checkSections{filter: true, network: true})
	out := buf.String()

	assert.Contains(t, out, "== Filter list ==\nengine up to date\ntitle:    Test")
	assert.Contains(t, out, "== Filter ==\ntype:     network")
	assert.Contains(t, out, "== Content blocking ==")
	assert.Contains(t, out, "== Network request ==\nBLOCKED")
	assert.NotContains(t, out, "Cosmetic")
}

func TestSavingDownloader(t *testing.T) {
	fs := afero.NewMemMapFs()
	dl := &savingDownloader{FileDownloader: download.New(fs, "/out")}

	store := dashboard.NewStore(engine.NewAdapter(0), dashboard.WithDownloader(dl), dashboard.WithExportFormat(engine.FormatJSON))
	store.Apply(dashboard.FilterListTextChanged{Text: "||ads.example^"})
	store.Flush()
	store.Apply(dashboard.ExportRequested{})

	require.NoError(t, dl.err)
	assert.Equal(t, "/out/content-blocker.json", dl.path)
	data, err := afero.ReadFile(fs, dl.path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "url-filter")
}

func TestInitConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"valid file", "debounce = \"250ms\"\n", ""},
		{"unparsable duration", "debounce = \"soon\"\n", "parse config"},
		{"unknown export format", "[export]\nformat = \"zip\"\n", "Format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dashboard.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			viper.Reset()
			cfgFile, cfg, cfgErr = path, models.Config{}, nil
			t.Cleanup(func() {
				viper.Reset()
				cfgFile, cfg, cfgErr = "", models.Config{}, nil
			})

			initConfig()
			if tt.wantErr != "" {
				require.Error(t, cfgErr)
				assert.Contains(t, cfgErr.Error(), tt.wantErr)
				return
			}
			require.NoError(t, cfgErr)
			assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
		})
	}
}
