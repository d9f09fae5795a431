package translation

import (
	"context"
)

// Tier is one provider in the fallback chain. No translation-provider
// client library exists anywhere in the retrieval pack, so every tier
// except Amazon is a direct net/http call against that provider's REST
// API; AmazonTier uses the AWS SDK v2 translate client.
type Tier interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
