package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bnema/adblock-dashboard/internal/dashboard"
	"github.com/bnema/adblock-dashboard/internal/download"
	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/tui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a filter, a network request or a page without the dashboard",
	RunE:  runCheck,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Compile a filter list and save the serialized engine",
	RunE:  runExport,
}

func init() {
	checkCmd.Flags().StringP("list", "l", "", "filter list file (default: enabled lists from config)")
	checkCmd.Flags().String("engine", "", "start from a serialized .dat engine instead of a list")
	checkCmd.Flags().StringP("resources", "r", "", "resources.json to load")
	checkCmd.Flags().StringP("filter", "f", "", "single filter to parse and convert")
	checkCmd.Flags().StringP("url", "u", "", "request URL")
	checkCmd.Flags().StringP("source", "s", "", "source (page) URL of the request")
	checkCmd.Flags().StringP("type", "t", "", "request type (script, image, ...)")
	checkCmd.Flags().String("cosmetic", "", "page URL to collect cosmetic resources for")

	exportCmd.Flags().StringP("list", "l", "", "filter list file (default: enabled lists from config)")
	exportCmd.Flags().StringP("resources", "r", "", "resources.json to bundle")
	exportCmd.Flags().String("format", "", "export format: dat or json (default from config)")
	exportCmd.Flags().StringP("output", "o", "", "output directory (default from config)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx := cmd.Context()

	var opts []dashboard.Option
	enginePath, _ := cmd.Flags().GetString("engine")
	if enginePath != "" {
		data, err := afero.ReadFile(osFs, enginePath)
		if err != nil {
			return fmt.Errorf("read engine: %w", err)
		}
		e, err := engine.Deserialize(data, cfg.Engine.MaxRules)
		if err != nil {
			return err
		}
		opts = append(opts, dashboard.WithEngine(e))
	}

	store, err := newStore(logger, opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	resourcesPath, _ := cmd.Flags().GetString("resources")
	if text, ok, err := loadResourcesText(ctx, resourcesPath, logger); err != nil {
		return err
	} else if ok {
		store.Apply(dashboard.ResourcesLoaded{JSON: text})
	}

	listPath, _ := cmd.Flags().GetString("list")
	if enginePath == "" {
		listText, err := loadListText(ctx, listPath, logger)
		if err != nil {
			return err
		}
		store.Apply(dashboard.FilterListTextChanged{Text: listText})
		store.Flush()
	}

	sections := checkSections{}
	if cmd.Flags().Changed("filter") {
		sections.filter = true
		text, _ := cmd.Flags().GetString("filter")
		store.Apply(dashboard.FilterTextChanged{Text: text})
	}
	url, _ := cmd.Flags().GetString("url")
	source, _ := cmd.Flags().GetString("source")
	typ, _ := cmd.Flags().GetString("type")
	store.Apply(dashboard.NetworkURLChanged{Text: url})
	store.Apply(dashboard.NetworkSourceChanged{Text: source})
	store.Apply(dashboard.NetworkTypeChanged{Text: typ})
	sections.network = url != "" || source != "" || typ != ""
	if cmd.Flags().Changed("cosmetic") {
		sections.cosmetic = true
		page, _ := cmd.Flags().GetString("cosmetic")
		store.Apply(dashboard.CosmeticURLChanged{Text: page})
	}

	printReport(cmd.OutOrStdout(), store.State(), sections)
	return nil
}

type checkSections struct {
	filter   bool
	network  bool
	cosmetic bool
}

func printReport(w io.Writer, st dashboard.State, s checkSections) {
	section := func(title, body string) {
		fmt.Fprintf(w, "== %s ==\n%s\n\n", title, body)
	}

	section("Filter list", tui.RenderRebuild(st)+"\n"+tui.RenderMetadata(st.ListMetadata)+"\n"+tui.RenderStats(st.ListStats, st.EngineStats))
	if st.ResourcesError != nil {
		section("Resources", "error: "+st.ResourcesError.Error())
	}
	if s.filter {
		section("Filter", tui.RenderFilter(st.ParsedFilter))
		section("Content blocking", tui.RenderContentBlocking(st.ContentBlocking))
	}
	if s.network {
		section("Network request", tui.RenderNetwork(st.NetworkResult))
	}
	if s.cosmetic {
		section("Cosmetic resources", tui.RenderCosmetic(st.CosmeticResult))
	}
}

// savingDownloader remembers where the store saved the export and whether it failed
type savingDownloader struct {
	*download.FileDownloader
	path string
	err  error
}

func (d *savingDownloader) Save(name string, data []byte) error {
	d.err = d.FileDownloader.Save(name, data)
	if d.err == nil {
		d.path = d.Path(name)
	}
	return d.err
}

func runExport(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	ctx := cmd.Context()

	format, err := exportFormatFlag(cmd)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("output")
	if dir == "" {
		dir = cfg.Export.Dir
	}

	dl := &savingDownloader{FileDownloader: download.New(osFs, dir)}
	store, err := newStore(logger, dashboard.WithDownloader(dl))
	if err != nil {
		return err
	}
	defer store.Close()

	resourcesPath, _ := cmd.Flags().GetString("resources")
	if text, ok, err := loadResourcesText(ctx, resourcesPath, logger); err != nil {
		return err
	} else if ok {
		store.Apply(dashboard.ResourcesLoaded{JSON: text})
		if st := store.State(); st.ResourcesError != nil {
			return st.ResourcesError
		}
	}

	listPath, _ := cmd.Flags().GetString("list")
	listText, err := loadListText(ctx, listPath, logger)
	if err != nil {
		return err
	}
	if listText == "" {
		return fmt.Errorf("no filter list: pass --list or enable lists in the config")
	}
	store.Apply(dashboard.FilterListTextChanged{Text: listText})
	store.Flush()
	if st := store.State(); st.RebuildError != nil {
		return fmt.Errorf("compile filter list: %w", st.RebuildError)
	}

	store.Apply(dashboard.ExportFormatChanged{Format: format})
	store.Apply(dashboard.ExportRequested{})
	if dl.err != nil {
		return dl.err
	}
	if dl.path == "" {
		return fmt.Errorf("export produced no file")
	}

	st := store.State()
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d filters (%d resources) to %s\n",
		st.EngineStats.Filters, st.EngineStats.Resources, dl.path)
	return nil
}

// exportFormatFlag validates a --format value
func exportFormatFlag(cmd *cobra.Command) (engine.Format, error) {
	s, _ := cmd.Flags().GetString("format")
	if s == "" {
		s = cfg.Export.Format
	}
	return engine.ParseFormat(s)
}
