package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide explains where the proxy listing API key comes from
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "PROXY API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "imgscraper rotates search requests through proxies listed by the")
	fmt.Fprintln(w, "Webshare API. To get a key:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Sign in at https://proxy.webshare.io")
	fmt.Fprintln(w, "  2. Open API > Keys and create a key")
	fmt.Fprintln(w, "  3. Paste it below, or export IMGSCRAPER_API_KEY")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Without a key the scraper still runs, with proxies disabled.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
