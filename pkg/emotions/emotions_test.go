package emotions_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-kaiwa/pkg/emotions"
)

func TestLabelCode(t *testing.T) {
	tests := []struct {
		label emotions.Label
		want  emotions.Code
	}{
		{emotions.Joy, emotions.Happy},
		{emotions.Sadness, emotions.Sad},
		{emotions.Anticipation, emotions.Relax},
		{emotions.Surprise, emotions.Surprised},
		{emotions.Anger, emotions.Angry},
		{emotions.Fear, emotions.Shock},
		{emotions.Disgust, emotions.Jitome},
		{emotions.Trust, emotions.Tere},
		{emotions.Label(8), emotions.Normal},
		{emotions.Label(-1), emotions.Normal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.label.Code(), "label %d", tt.label)
	}

	assert.Equal(t, 2, int(emotions.Happy))
	assert.Equal(t, 9, int(emotions.Shock))
	assert.Equal(t, "jitome", emotions.Jitome.String())
}

func TestStripEmoji(t *testing.T) {
	assert.Equal(t, "楽しかった!", emotions.StripEmoji("楽しかった😀🎉!"))
	assert.Equal(t, "flag ", emotions.StripEmoji("flag 🇯🇵"))
	assert.Equal(t, "", emotions.StripEmoji("🚀"))
}

func TestLexicon(t *testing.T) {
	lex := emotions.NewLexicon(nil)
	ctx := context.Background()

	tests := []struct {
		text string
		want emotions.Code
	}{
		{"すごく楽しかった。また行きたい。", emotions.Normal},
		{"今日は本当に楽しい一日だったよ、嬉しい!", emotions.Happy},
		{"それは悲しいね", emotions.Sad},
		{"明日が楽しみ!", emotions.Relax},
		{"えっ、びっくりした", emotions.Surprised},
		{"もう許せない", emotions.Angry},
		{"ちょっと怖いな", emotions.Shock},
		{"うんざりだよ", emotions.Jitome},
		{"ありがとう、大好き", emotions.Tere},
		{"I am so HAPPY 😀", emotions.Happy},
		{"", emotions.Normal},
	}
	for _, tt := range tests {
		got, err := lex.Analyze(ctx, tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestLexiconCustomKeywords(t *testing.T) {
	lex := emotions.NewLexicon(map[emotions.Label][]string{
		emotions.Anger: {" GRR "},
		emotions.Label(42): {"ignored"},
	})
	got, err := lex.Analyze(context.Background(), "grr grr")
	require.NoError(t, err)
	assert.Equal(t, emotions.Angry, got)

	got, err = lex.Analyze(context.Background(), "嬉しい")
	require.NoError(t, err)
	assert.Equal(t, emotions.Normal, got)
}

func TestClassifier(t *testing.T) {
	var lastText atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastText.Store(req.Text)

		switch req.Text {
		case "label":
			_, _ = w.Write([]byte(`{"label": 5}`))
		case "scores":
			_, _ = w.Write([]byte(`{"scores": [0.1, 0.05, 0.02, 0.01, 0.6, 0.1, 0.1, 0.02]}`))
		case "empty":
			_, _ = w.Write([]byte(`{}`))
		default:
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	c := emotions.NewClassifier(server.URL, time.Second)
	ctx := context.Background()

	code, err := c.Analyze(ctx, "label😀")
	require.NoError(t, err)
	assert.Equal(t, emotions.Shock, code)
	assert.Equal(t, "label", lastText.Load())

	code, err = c.Analyze(ctx, "scores")
	require.NoError(t, err)
	assert.Equal(t, emotions.Angry, code)

	_, err = c.Analyze(ctx, "empty")
	assert.ErrorIs(t, err, emotions.ErrNoScores)

	_, err = c.Analyze(ctx, "boom")
	var cerr *emotions.ClassifierError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusServiceUnavailable, cerr.StatusCode)

	code, err = c.Analyze(ctx, "🎉")
	require.NoError(t, err)
	assert.Equal(t, emotions.Normal, code)
}

type failingAnalyzer struct{ err error }

func (f failingAnalyzer) Analyze(context.Context, string) (emotions.Code, error) {
	return emotions.Normal, f.err
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	f := emotions.NewFallback(emotions.Static(emotions.Tere), emotions.Static(emotions.Sad), nil)
	code, err := f.Analyze(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, emotions.Tere, code)

	f = emotions.NewFallback(failingAnalyzer{errors.New("down")}, emotions.NewLexicon(nil), nil)
	code, err = f.Analyze(ctx, "悲しい")
	require.NoError(t, err)
	assert.Equal(t, emotions.Sad, code)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.Analyze(cancelled, "悲しい")
	assert.ErrorIs(t, err, context.Canceled)
}
