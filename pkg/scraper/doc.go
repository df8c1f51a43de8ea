// Package scraper runs one image scrape: proxy validation, the search loop
// and the background download workers.
//
// Architecture:
//
// Scraper owns everything a run needs and wires it together in Scrape:
//   - lists candidate proxies and keeps those that pass a health probe
//   - starts the download workers on a shared queue
//   - runs the search Loop, which fetches one results page per iteration
//     through a randomly chosen working proxy and queues the first
//     absolute image URL on that page
//   - sends one stop sentinel per worker and waits for them to drain
//
// Usage:
//
//	cfg := config.DefaultConfig()
//	cfg.Search.Keys = []string{"cat"}
//	cfg.Proxy.APIKey = os.Getenv("IMGSCRAPER_API_KEY")
//
//	s, err := scraper.New(cfg, logger.GetLogger())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := s.Scrape(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result)
//
// Rate Limiting:
//
// Search requests share a ratelimit.Gate (30 permits by default) and every
// iteration is followed by a fixed one second pause, whatever its outcome.
// Only one image is taken from each results page.
//
// Storage:
//
// Images are written to <base>/<search key>/ as <key>_<n>.<format>, or under
// the basename of their URL when keep_filenames is set. The extension always
// comes from the decoded format.
package scraper
