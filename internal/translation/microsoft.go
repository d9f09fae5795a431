package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notihub/notihub/internal/apperrors"
)

// MicrosoftTier calls the Azure Cognitive Services Translator REST API.
type MicrosoftTier struct {
	apiKey     string
	region     string
	baseURL    string
	httpClient *http.Client
}

func NewMicrosoftTier(apiKey, region string) *MicrosoftTier {
	return &MicrosoftTier{
		apiKey: apiKey, region: region,
		baseURL:    "https://api.cognitive.microsofttranslator.com/translate?api-version=3.0",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *MicrosoftTier) Name() string { return "microsoft" }

func (t *MicrosoftTier) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	url := fmt.Sprintf("%s&from=%s&to=%s", t.baseURL, sourceLang, targetLang)
	reqBody, _ := json.Marshal([]map[string]string{{"Text": text}})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("microsoft", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", t.apiKey)
	req.Header.Set("Ocp-Apim-Subscription-Region", t.region)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("microsoft", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperrors.NewRateLimitedError(time.Second)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewServiceUnavailableError("microsoft", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out []struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &out); err != nil || len(out) == 0 || len(out[0].Translations) == 0 {
		return "", apperrors.NewServiceUnavailableError("microsoft", fmt.Errorf("unexpected response shape"))
	}
	return out[0].Translations[0].Text, nil
}
