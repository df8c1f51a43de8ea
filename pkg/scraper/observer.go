package scraper

import "imgscraper/internal/downloader"

// Observer receives progress events from a scrape run. OnDownload is called
// from worker goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	OnProxies(candidates, working int)
	OnSearch(done, total int, imageURL string, err error)
	OnDownload(result downloader.DownloadResult)
}

type nopObserver struct{}

func (nopObserver) OnProxies(int, int)                   {}
func (nopObserver) OnSearch(int, int, string, error)     {}
func (nopObserver) OnDownload(downloader.DownloadResult) {}

// Observers fans events out to several observers in order
type Observers []Observer

func (o Observers) OnProxies(candidates, working int) {
	for _, obs := range o {
		obs.OnProxies(candidates, working)
	}
}

func (o Observers) OnSearch(done, total int, imageURL string, err error) {
	for _, obs := range o {
		obs.OnSearch(done, total, imageURL, err)
	}
}

func (o Observers) OnDownload(result downloader.DownloadResult) {
	for _, obs := range o {
		obs.OnDownload(result)
	}
}

// Watch forwards gauge registration to members that export gauges
func (o Observers) Watch(name, help string, fn func() int) {
	for _, obs := range o {
		if w, ok := obs.(gaugeWatcher); ok {
			w.Watch(name, help, fn)
		}
	}
}
