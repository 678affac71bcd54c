package urlcheck

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"market-briefer/internal/metrics"
)

const (
	headTimeout = 3 * time.Second
	getTimeout  = 6 * time.Second

	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// softNotFoundMarkers are body substrings that turn an HTTP 200 into a
// dead page. Matched case-insensitively against visible text.
var softNotFoundMarkers = []string{
	"page not found",
	"página não encontrada",
	"pagina nao encontrada",
	"conteúdo não encontrado",
	"content not found",
}

// Validator decides whether a URL is worth publishing. Errors of the
// network kind count as valid: a timeout or a bot wall is not proof the
// page is gone, and dropping real sources is the worse failure.
type Validator struct {
	head *http.Client
	get  *http.Client
	log  *slog.Logger
}

func NewValidator(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{
		head: &http.Client{Timeout: headTimeout},
		get:  &http.Client{Timeout: getTimeout},
		log:  log,
	}
}

// IsValid runs the HEAD-then-GET ladder. Only a clean 4xx (other than
// 403) or a confirmed soft 404 rejects the URL.
func (v *Validator) IsValid(ctx context.Context, rawURL string) bool {
	if !strings.HasPrefix(rawURL, "http") {
		return false
	}

	if status, ok := v.headStatus(ctx, rawURL); ok {
		if isHardNotFound(status) {
			metrics.URLValidations.WithLabelValues("invalid_head").Inc()
			return false
		}
		// 2xx/3xx still needs the body check; 403 and 5xx escalate to GET
		// because many sites reject HEAD outright.
	}
	return v.validateGet(ctx, rawURL)
}

func (v *Validator) headStatus(ctx context.Context, rawURL string) (int, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", browserUA)
	resp, err := v.head.Do(req)
	if err != nil {
		return 0, false
	}
	resp.Body.Close()
	return resp.StatusCode, true
}

func (v *Validator) validateGet(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.URLValidations.WithLabelValues("valid_error").Inc()
		return true
	}
	req.Header.Set("User-Agent", browserUA)
	resp, err := v.get.Do(req)
	if err != nil {
		// Network failure, timeout, TLS trouble: presumed alive.
		metrics.URLValidations.WithLabelValues("valid_error").Inc()
		v.log.Debug("urlcheck: GET failed, keeping url", "url", rawURL, "err", err)
		return true
	}
	defer resp.Body.Close()

	if isHardNotFound(resp.StatusCode) {
		metrics.URLValidations.WithLabelValues("invalid_status").Inc()
		return false
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusForbidden {
		metrics.URLValidations.WithLabelValues("valid_blocked").Inc()
		return true
	}

	// Redirect chains that land on LinkedIn's not-found interstitial
	// keep a 200 status; the final URL gives it away.
	if final := resp.Request.URL; final != nil &&
		strings.Contains(final.String(), "trk=article_not_found") {
		metrics.URLValidations.WithLabelValues("invalid_soft404").Inc()
		return false
	}

	if v.isSoftNotFound(resp) {
		metrics.URLValidations.WithLabelValues("invalid_soft404").Inc()
		return false
	}
	metrics.URLValidations.WithLabelValues("valid").Inc()
	return true
}

// isSoftNotFound inspects the page text for not-found markers. Parse
// failures never reject.
func (v *Validator) isSoftNotFound(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return false
	}
	text := strings.ToLower(doc.Find("title").Text() + " " + doc.Find("h1, h2").Text())
	for _, marker := range softNotFoundMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// isHardNotFound is a 4xx other than 403. A 403 is usually a bot wall,
// not a missing page.
func isHardNotFound(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusForbidden
}
