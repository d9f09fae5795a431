package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_GoodTranslationScoresHigh(t *testing.T) {
	score := Score("Hello, how are you today?", "Bonjour, comment allez-vous aujourd'hui?")
	assert.Greater(t, score, 0.8)
}

func TestScore_NoOpTranslationScoresLow(t *testing.T) {
	score := Score("Hello there", "Hello there")
	assert.Less(t, score, 0.2)
}

func TestScore_WildLengthRatioPenalized(t *testing.T) {
	withoutPenalty := Score("a normal sentence of moderate length here", "une phrase normale de longueur moderee ici")
	withPenalty := Score("a normal sentence of moderate length here", "x")
	assert.Less(t, withPenalty, withoutPenalty)
}

func TestScore_MismatchedHTMLTagsPenalized(t *testing.T) {
	plain := Score("<b>hello</b> world", "<b>bonjour</b> monde")
	mismatched := Score("<b>hello</b> world", "bonjour monde")
	assert.Less(t, mismatched, plain)
}

func TestScore_ClippedToUnitRange(t *testing.T) {
	score := Score("hi", "hi")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
