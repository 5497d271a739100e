package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	pdfTimeout     = 30 * time.Second
	maxFilenameLen = 50
)

// Browsers chromedp may drive, in lookup order.
var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome"}

var lookPath = exec.LookPath

// pageSetup is a paper size and a uniform margin, in inches.
type pageSetup struct {
	width, height, margin float64
}

var a4 = pageSetup{width: 8.27, height: 11.69, margin: 0.6}

var chromeFlags = []chromedp.ExecAllocatorOption{
	chromedp.Flag("headless", true),
	chromedp.Flag("disable-gpu", true),
	chromedp.Flag("no-sandbox", true),
	chromedp.Flag("disable-dev-shm-usage", true),
	chromedp.Flag("disable-setuid-sandbox", true),
}

// exportPDF prints html through headless Chrome.
func exportPDF(ctx context.Context, html, title string) (*Result, error) {
	if !chromeInstalled() {
		return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}
	data, err := printPage(ctx, html, a4)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: PDFMimeType,
	}, nil
}

func printPage(ctx context.Context, html string, setup pageSetup) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromeFlags...)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var out []byte
	printAction := chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(setup.width).
			WithPaperHeight(setup.height).
			WithMarginTop(setup.margin).
			WithMarginBottom(setup.margin).
			WithMarginLeft(setup.margin).
			WithMarginRight(setup.margin).
			WithPreferCSSPageSize(true).
			Do(ctx)
		out = data
		return err
	})
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(html)),
		chromedp.WaitReady("body"),
		printAction,
	)
	if err != nil {
		return nil, fmt.Errorf("print agenda: %w", err)
	}
	return out, nil
}

func chromeInstalled() bool {
	for _, name := range chromeBinaries {
		if _, err := lookPath(name); err == nil {
			return true
		}
	}
	return false
}

// percentEncodeForDataURL escapes every byte outside the RFC 3986
// unreserved set, so a space becomes %20 and never +.
func percentEncodeForDataURL(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

// sanitizeFilename keeps ASCII letters, digits, '-' and '_', turns spaces
// into '-' and falls back to "agenda".
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		if b.Len() == maxFilenameLen {
			break
		}
		switch {
		case r < 128 && isUnreserved(byte(r)) && r != '.' && r != '~':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "agenda"
	}
	return b.String()
}
