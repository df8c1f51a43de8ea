package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"imgscraper/pkg/auth"
	"imgscraper/pkg/config"
	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/metrics"
	"imgscraper/pkg/scraper"
	"imgscraper/pkg/ui"
	"imgscraper/pkg/ui/tui"
)

type scrapeOptions struct {
	searchKeys    []string
	numImages     int
	useProxies    bool
	keepFilenames bool
	apiKey        string
	output        string
	workers       int
	concurrency   int
	useTUI        bool
	notify        bool
}

func newScrapeCmd(opts *scrapeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [search key...]",
		Short: "Search for a keyword and download the first image of each results page",
		Long: `Search for a keyword and download one image per results page.

Only the first unique search key is used. Search requests go through a random
working proxy when an API key for the proxy list is available, otherwise they
are sent directly. The API key is looked up in this order:
  - the --api-key flag
  - IMGSCRAPER_API_KEY or the config file
  - the key stored with 'imgscraper auth set-key'

Images are saved to <output>/<search key>/.`,
		Example: `  # Five images of red pandas through rotating proxies
  imgscraper scrape --search-keys "red panda"

  # Twenty images without proxies, keeping the original file names
  imgscraper scrape --search-keys cat -n 20 --use-proxies=false --keep-filenames

  # Interactive terminal UI with metrics on :9090
  imgscraper scrape --search-keys dog --tui --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.searchKeys = append(opts.searchKeys, args...)
			return runScrape(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.searchKeys, "search-keys", "k", nil, "search keys; only the first unique key is used")
	f.IntVarP(&opts.numImages, "num-images", "n", 5, "number of search iterations")
	f.BoolVar(&opts.useProxies, "use-proxies", true, "send search requests through validated proxies")
	f.BoolVar(&opts.keepFilenames, "keep-filenames", false, "name files after the image URL instead of <key>_<n>")
	f.StringVar(&opts.apiKey, "api-key", "", "proxy list API key")
	f.StringVarP(&opts.output, "output", "o", "", "base output directory (default: current directory)")
	f.IntVar(&opts.workers, "workers", 1, "number of download workers")
	f.IntVar(&opts.concurrency, "concurrency", 30, "maximum in-flight search requests")
	f.BoolVar(&opts.useTUI, "tui", false, "use the interactive terminal UI")
	f.BoolVar(&opts.notify, "notify", false, "send a desktop notification when the run ends")

	return cmd
}

func init() {
	rootCmd.AddCommand(newScrapeCmd(&scrapeOptions{}))
}

// scrapeOverrides maps the scrape flags that were set onto config keys
func scrapeOverrides(cmd *cobra.Command, opts *scrapeOptions) map[string]interface{} {
	flags := globalOverrides(cmd)
	changed := cmd.Flags().Changed

	if len(opts.searchKeys) > 0 {
		flags["search-keys"] = opts.searchKeys
	}
	if changed("num-images") {
		flags["num-images"] = opts.numImages
	}
	if changed("use-proxies") {
		flags["use-proxies"] = opts.useProxies
	}
	if changed("keep-filenames") {
		flags["keep-filenames"] = opts.keepFilenames
	}
	if opts.apiKey != "" {
		flags["api-key"] = opts.apiKey
	}
	if opts.output != "" {
		flags["output"] = opts.output
	}
	if changed("workers") {
		flags["workers"] = opts.workers
	}
	if changed("concurrency") {
		flags["concurrency"] = opts.concurrency
	}
	return flags
}

// defaultKeyStore is the stored-key lookup used when neither the flag nor
// the config provide an API key
type defaultKeyStore interface {
	RetrieveDefault() (*auth.APIKey, error)
}

// resolveAPIKey fills cfg.Proxy.APIKey from store when proxies are on and no
// key was given
func resolveAPIKey(cfg *config.Config, store defaultKeyStore, log logger.Logger) {
	if !cfg.Proxy.Enabled || cfg.Proxy.APIKey != "" || store == nil {
		return
	}
	key, err := store.RetrieveDefault()
	if err != nil {
		log.WithError(err).Debug("No stored API key")
		return
	}
	cfg.Proxy.APIKey = key.Key
	log.WithField("name", key.Name).Debug("Using stored API key")
}

func runScrape(cmd *cobra.Command, opts *scrapeOptions) error {
	cfg, err := config.Load(configFile, scrapeOverrides(cmd, opts))
	if err != nil {
		return errors.Wrap(errors.ErrorTypeConfig, err, "failed to load configuration")
	}

	if quiet && !cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = "error"
	}
	var logSink *tui.LogWriter
	if opts.useTUI {
		logSink = tui.NewLogWriter()
	}
	log, err := newRunLogger(cfg, logSink)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeConfig, err, "failed to initialize logger")
	}
	log.WithField("version", version).Debug("imgscraper starting")

	if cfg.Proxy.Enabled && cfg.Proxy.APIKey == "" {
		if manager, err := auth.NewManager(); err == nil {
			resolveAPIKey(cfg, manager, log)
		} else {
			log.WithError(err).Debug("Credential store unavailable")
		}
	}

	s, err := scraper.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observers scraper.Observers
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		observers = append(observers, metrics.New(reg))
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg, log); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	notifier := ui.NewNotifier(opts.notify)

	var result *scraper.Result
	if opts.useTUI {
		result, err = scrapeWithTUI(ctx, stop, s, cfg, observers, logSink)
	} else {
		result, err = scrapeWithProgress(ctx, s, cfg, observers)
	}
	if err != nil {
		notifier.SendError("imgscraper", err.Error())
		return err
	}

	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted", "partial results were kept")
	}
	if result.WorkingProxies == 0 && cfg.Proxy.Enabled {
		notifier.SendError("imgscraper", "No working proxies for "+s.SearchKey())
		ui.PrintError("No working proxies", "nothing was downloaded")
		return nil
	}
	notifier.SendSuccess("imgscraper", result.String())
	return nil
}

// newRunLogger sets up the global logger. The TUI owns the screen, so in
// TUI mode entries go to its log panel as JSON instead of the console.
func newRunLogger(cfg *config.Config, tuiSink *tui.LogWriter) (logger.Logger, error) {
	if tuiSink != nil {
		logCfg := cfg.Logging
		logCfg.Format = "json"
		return logger.NewWithWriter(&logCfg, tuiSink)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return logger.GetLogger(), nil
}

func scrapeWithProgress(ctx context.Context, s *scraper.Scraper, cfg *config.Config, observers scraper.Observers) (*scraper.Result, error) {
	ui.PrintInfo("Search Key", s.SearchKey())
	ui.PrintInfo("Output", s.OutputDir())
	if !cfg.Proxy.Enabled {
		ui.PrintWarning("Proxies disabled", "search requests are sent directly")
	}

	display := ui.NewProgressDisplay(s.SearchKey(), cfg.Search.NumImages, verbose)
	s.SetObserver(append(observers, display))

	result, err := s.Scrape(ctx)
	if err != nil {
		return nil, err
	}
	if result.WorkingProxies > 0 || !cfg.Proxy.Enabled {
		display.Complete(result.OutputDir)
	}
	if result.ShutdownErr != nil {
		ui.PrintWarning("Some downloads did not finish", result.ShutdownErr.Error())
	}
	return result, nil
}

func scrapeWithTUI(ctx context.Context, cancel context.CancelFunc, s *scraper.Scraper, cfg *config.Config, observers scraper.Observers, logSink *tui.LogWriter) (*scraper.Result, error) {
	t := tui.NewTUI(s.SearchKey(), cfg.Search.NumImages, cfg.Proxy.Enabled, cancel)
	// Sends block until the program runs
	go logSink.Attach(t)
	s.SetObserver(append(observers, t))

	type outcome struct {
		result *scraper.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.Scrape(ctx)
		if err != nil {
			t.Done("", err)
		} else {
			t.Done(result.String(), nil)
		}
		done <- outcome{result, err}
	}()

	if err := t.Start(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("terminal UI failed: %w", err)
	}

	out := <-done
	if out.err == nil {
		ui.PrintSuccess(out.result.String())
	}
	return out.result, out.err
}
