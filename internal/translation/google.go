package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notihub/notihub/internal/apperrors"
)

// GoogleTier calls the Google Cloud Translation v2 REST API directly (an
// API-key call, not the gRPC client library, which pulls in a much larger
// dependency tree for a single endpoint already reachable over plain HTTP).
type GoogleTier struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGoogleTier(apiKey string) *GoogleTier {
	return &GoogleTier{apiKey: apiKey, baseURL: "https://translation.googleapis.com/language/translate/v2", httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (t *GoogleTier) Name() string { return "google" }

func (t *GoogleTier) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("source", sourceLang)
	form.Set("target", targetLang)
	form.Set("format", "text")
	form.Set("key", t.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("google", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("google", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperrors.NewRateLimitedError(time.Second)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewServiceUnavailableError("google", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Data.Translations) == 0 {
		return "", apperrors.NewServiceUnavailableError("google", fmt.Errorf("unexpected response shape"))
	}
	return out.Data.Translations[0].TranslatedText, nil
}
