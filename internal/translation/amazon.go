package translation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/notihub/notihub/internal/apperrors"
)

// AmazonTier is the last tier in the chain, using Amazon Translate through
// its real AWS SDK v2 client (the same SigV4 credential chain SES already
// uses) rather than a hand-rolled HTTP call, since a first-party SDK exists
// for this one.
type AmazonTier struct {
	client *translate.Client
}

func NewAmazonTier(client *translate.Client) *AmazonTier {
	return &AmazonTier{client: client}
}

func (t *AmazonTier) Name() string { return "amazon" }

func (t *AmazonTier) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, err := t.client.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(sourceLang),
		TargetLanguageCode: aws.String(targetLang),
	})
	if err != nil {
		return "", apperrors.NewServiceUnavailableError("amazon", err)
	}
	return aws.ToString(out.TranslatedText), nil
}
