package emotions

import (
	"context"
	"strings"
)

// DefaultKeywords is a small Japanese and English keyword set per WRIME label.
var DefaultKeywords = map[Label][]string{
	Joy:          {"嬉しい", "うれしい", "楽しい", "たのしい", "最高", "よかった", "やった", "幸せ", "happy", "glad", "great", "fun"},
	Sadness:      {"悲しい", "かなしい", "寂しい", "さみしい", "残念", "つらい", "辛い", "泣", "sad", "sorry", "lonely"},
	Anticipation: {"楽しみ", "期待", "待ち遠しい", "わくわく", "ワクワク", "looking forward", "can't wait"},
	Surprise:     {"びっくり", "驚", "まさか", "えっ", "本当に?", "wow", "surprised"},
	Anger:        {"怒", "むかつく", "ムカつく", "許せない", "腹が立つ", "angry", "annoyed"},
	Fear:         {"怖い", "こわい", "不安", "心配", "恐", "scared", "afraid", "worried"},
	Disgust:      {"嫌い", "きらい", "気持ち悪い", "うんざり", "最悪", "gross", "disgusting"},
	Trust:        {"ありがとう", "信じ", "大好き", "頼り", "照れ", "thank", "trust"},
}

// Lexicon is a keyword Analyzer. The label with the most keyword hits wins;
// ties go to the lower label index and no hits mean Normal.
type Lexicon struct {
	keywords [numLabels][]string
}

// NewLexicon builds a lexicon. A nil map uses DefaultKeywords.
func NewLexicon(keywords map[Label][]string) *Lexicon {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	l := &Lexicon{}
	for label, words := range keywords {
		if label < 0 || label >= numLabels {
			continue
		}
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				l.keywords[label] = append(l.keywords[label], w)
			}
		}
	}
	return l
}

// Analyze never fails.
func (l *Lexicon) Analyze(_ context.Context, text string) (Code, error) {
	text = strings.ToLower(StripEmoji(text))

	best, bestHits := Label(-1), 0
	for label := Label(0); label < numLabels; label++ {
		hits := 0
		for _, w := range l.keywords[label] {
			hits += strings.Count(text, w)
		}
		if hits > bestHits {
			best, bestHits = label, hits
		}
	}
	return best.Code(), nil
}

// Verify Lexicon implements Analyzer at compile time.
var _ Analyzer = (*Lexicon)(nil)
