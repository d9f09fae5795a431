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

// DeepLTier calls the DeepL translation REST API. Second in the chain: no
// client library for it exists in the retrieval pack.
type DeepLTier struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDeepLTier(apiKey string) *DeepLTier {
	return &DeepLTier{apiKey: apiKey, baseURL: "https://api.deepl.com/v2", httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (t *DeepLTier) Name() string { return "deepl" }

func (t *DeepLTier) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("source_lang", strings.ToUpper(sourceLang))
	form.Set("target_lang", strings.ToUpper(targetLang))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("deepl", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+t.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("deepl", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperrors.NewRateLimitedError(time.Second)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewServiceUnavailableError("deepl", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out.Translations) == 0 {
		return "", apperrors.NewServiceUnavailableError("deepl", fmt.Errorf("unexpected response shape"))
	}
	return out.Translations[0].Text, nil
}
