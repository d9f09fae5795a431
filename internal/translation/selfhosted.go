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

// SelfHostedTier calls a self-hosted inference endpoint (an internal LLM
// translation service) first in the chain, since it carries no per-call
// cost and no external rate limit.
type SelfHostedTier struct {
	baseURL    string
	httpClient *http.Client
}

func NewSelfHostedTier(baseURL string) *SelfHostedTier {
	return &SelfHostedTier{baseURL: baseURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (t *SelfHostedTier) Name() string { return "self_hosted" }

func (t *SelfHostedTier) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{
		"text": text, "source_lang": sourceLang, "target_lang": targetLang,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(reqBody))
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("self_hosted", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("self_hosted", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewServiceUnavailableError("self_hosted", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var out struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apperrors.NewServiceUnavailableError("self_hosted", err)
	}
	return out.TranslatedText, nil
}
