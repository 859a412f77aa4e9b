// Package portal downloads invoice and import permit PDFs from the
// vendor's member portal through a headless browser. The portal has no
// API; documents hang off per-order download links on the order list
// page.
package portal

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"kaigen/internal/logger"
	"kaigen/pkg/models"
)

// Credentials are the member portal login credentials.
type Credentials struct {
	Username string
	Password string
}

// Downloader drives a headless Chromium session against the portal.
type Downloader struct {
	creds       Credentials
	baseURL     string
	downloadDir string
	maxLinks    int

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	log     zerolog.Logger
}

// NewDownloader creates a portal downloader saving PDFs under
// downloadDir. maxLinks caps the number of download links followed per
// run; zero means no cap.
func NewDownloader(creds Credentials, baseURL, downloadDir string, maxLinks int) *Downloader {
	return &Downloader{
		creds:       creds,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		downloadDir: downloadDir,
		maxLinks:    maxLinks,
		log:         logger.WithComponent("portal"),
	}
}

// Start launches the browser and signs in to the member area.
func (d *Downloader) Start() error {
	const op = "Start"

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("%s: starting playwright: %w", op, err)
	}
	d.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%s: launching browser: %w", op, err)
	}
	d.browser = browser

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%s: creating browser context: %w", op, err)
	}

	page, err := context.NewPage()
	if err != nil {
		return fmt.Errorf("%s: opening page: %w", op, err)
	}
	d.page = page

	if err := d.login(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// login opens the order list page, which redirects to the login form when
// unauthenticated, and submits the credentials.
func (d *Downloader) login() error {
	orderListURL := d.baseURL + "/member/orderlist.php"

	if _, err := d.page.Goto(orderListURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("opening %s: %w", orderListURL, err)
	}

	userInput := d.page.Locator(`input[type="text"], input[name*="user"], input[name*="id"]`).First()
	if visible, _ := userInput.IsVisible(); !visible {
		// No login form means the session is already authenticated.
		d.log.Debug().Msg("No login form found, assuming active session")
		return nil
	}
	if err := userInput.Fill(d.creds.Username); err != nil {
		return fmt.Errorf("filling username: %w", err)
	}
	if err := d.page.Locator(`input[type="password"]`).First().Fill(d.creds.Password); err != nil {
		return fmt.Errorf("filling password: %w", err)
	}
	if err := d.page.Locator(`input[type="submit"], button[type="submit"], button:has-text("ログイン")`).First().Click(); err != nil {
		return fmt.Errorf("submitting login form: %w", err)
	}
	if err := d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("waiting for post-login page: %w", err)
	}

	d.log.Info().Str("url", orderListURL).Msg("Signed in to portal")
	return nil
}

// Fetch downloads all documents linked from the order list page and
// returns them classified by type. Links that fail to download are
// logged and skipped.
func (d *Downloader) Fetch() ([]*models.Document, error) {
	const op = "Fetch"

	if d.page == nil {
		return nil, fmt.Errorf("%s: downloader is not started", op)
	}

	links, err := d.page.Locator(`a[href*="dllink.php?id="]`).All()
	if err != nil {
		return nil, fmt.Errorf("%s: locating download links: %w", op, err)
	}

	var hrefs []string
	seen := map[string]bool{}
	for _, link := range links {
		href, err := link.GetAttribute("href")
		if err != nil || href == "" || seen[href] {
			continue
		}
		seen[href] = true
		hrefs = append(hrefs, href)
	}
	if d.maxLinks > 0 && len(hrefs) > d.maxLinks {
		hrefs = hrefs[:d.maxLinks]
	}

	d.log.Info().Int("links", len(hrefs)).Msg("Found document download links")

	var documents []*models.Document
	for _, href := range hrefs {
		doc, err := d.download(href)
		if err != nil {
			d.log.Error().Err(err).Str("href", href).Msg("Download failed, skipping link")
			continue
		}
		documents = append(documents, doc)
	}
	return documents, nil
}

// download follows one dllink href and saves the resulting file. The
// document type comes from the portal's suggested filename.
func (d *Downloader) download(href string) (*models.Document, error) {
	url := href
	if !strings.HasPrefix(href, "http") {
		url = d.baseURL + "/member/" + strings.TrimPrefix(href, "/")
	}

	download, err := d.page.ExpectDownload(func() error {
		_, gotoErr := d.page.Goto(url)
		return gotoErr
	}, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(60000),
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for download of %s: %w", url, err)
	}

	name := download.SuggestedFilename()
	path := filepath.Join(d.downloadDir, name)
	if err := download.SaveAs(path); err != nil {
		return nil, fmt.Errorf("saving %s: %w", name, err)
	}

	docType := ClassifyFilename(name)
	d.log.Info().
		Str("file", name).
		Str("type", string(docType)).
		Msg("Document downloaded")

	return models.NewDocument(models.Document{
		FilePath:     path,
		DownloadURL:  url,
		Type:         docType,
		DownloadedAt: time.Now(),
	})
}

// ClassifyFilename derives the document type from a portal filename.
// Anything not recognizably an invoice is treated as an import permit,
// matching the portal's two-document order layout.
func ClassifyFilename(name string) models.DocumentType {
	lower := strings.ToLower(name)
	if strings.Contains(name, "請求書") || strings.Contains(lower, "invoice") {
		return models.DocumentTypeInvoice
	}
	return models.DocumentTypeImportPermit
}

// Close shuts down the browser session.
func (d *Downloader) Close() error {
	var firstErr error
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
