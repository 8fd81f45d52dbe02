package tts_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-kaiwa/pkg/tts"
	"github.com/teslashibe/go-kaiwa/pkg/wav"
)

// fakeBackend is an in-process Fish-Speech server.
type fakeBackend struct {
	mu       sync.Mutex
	requests []tts.Request
	types    []string

	healthStatus atomic.Int32
	healthCalls  atomic.Int32

	tts func(w http.ResponseWriter, req tts.Request)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{}
	fb.healthStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		fb.healthCalls.Add(1)
		w.WriteHeader(int(fb.healthStatus.Load()))
	})
	mux.HandleFunc("/v1/tts", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req tts.Request
		if err := msgpack.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fb.mu.Lock()
		fb.requests = append(fb.requests, req)
		fb.types = append(fb.types, r.Header.Get("Content-Type"))
		fb.mu.Unlock()
		fb.tts(w, req)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) lastRequest(t *testing.T) (tts.Request, string) {
	t.Helper()
	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NotEmpty(t, fb.requests)
	return fb.requests[len(fb.requests)-1], fb.types[len(fb.types)-1]
}

func newClient(t *testing.T, url string, opts ...tts.Option) *tts.FishSpeech {
	t.Helper()
	opts = append([]tts.Option{tts.WithBaseURL(url), tts.WithTimeout(2 * time.Second)}, opts...)
	client, err := tts.NewFishSpeech(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFishSpeechSynthesize(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x01, 0x02}, 441)
	fb, srv := newFakeBackend(t)
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav.Encode(pcm, 44100, 16, 1))
	}

	client := newClient(t, srv.URL+"/", tts.WithReference("marui"))
	frame, err := client.Synthesize(context.Background(), "こんにちは")
	require.NoError(t, err)

	assert.Equal(t, uint32(44100), frame.SampleRate)
	assert.Equal(t, pcm, frame.PCM)
	assert.Equal(t, 10*time.Millisecond, frame.Duration())

	req, contentType := fb.lastRequest(t)
	assert.Equal(t, tts.ContentTypeMsgpack, contentType)
	assert.Equal(t, "こんにちは", req.Text)
	assert.Equal(t, "marui", req.ReferenceID)
	assert.False(t, req.Streaming)
	assert.Equal(t, tts.FormatWAV, req.Format)
	assert.True(t, req.Normalize)
}

func TestFishSpeechSynthesizeMalformedBody(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		_, _ = w.Write([]byte("not a wav file at all"))
	}

	client := newClient(t, srv.URL)
	_, err := client.Synthesize(context.Background(), "hello")
	require.ErrorIs(t, err, wav.ErrMalformedContainer)
}

func TestFishSpeechRequestError(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		http.Error(w, "reference not loaded", http.StatusInternalServerError)
	}

	client := newClient(t, srv.URL)

	t.Run("single-shot", func(t *testing.T) {
		_, err := client.Synthesize(context.Background(), "hello")
		require.ErrorIs(t, err, tts.ErrSynthesisRequestFailed)

		var reqErr *tts.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
		assert.Equal(t, "reference not loaded", reqErr.Body)
	})

	t.Run("streaming", func(t *testing.T) {
		stream, err := client.SynthesizeStreaming(context.Background(), "hello")
		require.ErrorIs(t, err, tts.ErrSynthesisRequestFailed)
		assert.Nil(t, stream)
	})
}

func TestFishSpeechStreaming(t *testing.T) {
	chunks := [][]byte{
		bytes.Repeat([]byte{0xAA}, 512),
		bytes.Repeat([]byte{0xBB}, 300),
		bytes.Repeat([]byte{0xCC}, 17),
	}
	fb, srv := newFakeBackend(t)
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write(c)
			flusher.Flush()
		}
	}

	client := newClient(t, srv.URL, tts.WithReference("tsukuyomi"))
	stream, err := client.SynthesizeStreaming(context.Background(), "streaming text")
	require.NoError(t, err)
	defer stream.Close()

	var got []byte
	for {
		chunk, err := stream.Read()
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		assert.NotEmpty(t, chunk)
		got = append(got, chunk...)
	}
	assert.Equal(t, bytes.Join(chunks, nil), got)

	// Exhausted streams stay exhausted.
	chunk, err := stream.Read()
	require.NoError(t, err)
	assert.Nil(t, chunk)

	req, _ := fb.lastRequest(t)
	assert.True(t, req.Streaming)
	assert.Equal(t, "tsukuyomi", req.ReferenceID)
}

func TestFishSpeechStreamClose(t *testing.T) {
	release := make(chan struct{})
	fb, srv := newFakeBackend(t)
	t.Cleanup(func() { close(release) })
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		_, _ = w.Write([]byte{1, 2, 3, 4})
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}

	client := newClient(t, srv.URL)
	stream, err := client.SynthesizeStreaming(context.Background(), "hello")
	require.NoError(t, err)

	chunk, err := stream.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, chunk)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	_, err = stream.Read()
	require.ErrorIs(t, err, tts.ErrStreamClosed)
}

func TestFishSpeechCheckAvailability(t *testing.T) {
	t.Run("becomes available", func(t *testing.T) {
		fb, srv := newFakeBackend(t)
		fb.healthStatus.Store(http.StatusServiceUnavailable)

		client := newClient(t, srv.URL)
		go func() {
			for fb.healthCalls.Load() < 2 {
				time.Sleep(time.Millisecond)
			}
			fb.healthStatus.Store(http.StatusOK)
		}()

		err := client.CheckAvailability(context.Background(), 50, 5*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fb.healthCalls.Load(), int32(3))
	})

	t.Run("exhausts retries", func(t *testing.T) {
		fb, srv := newFakeBackend(t)
		fb.healthStatus.Store(http.StatusServiceUnavailable)

		client := newClient(t, srv.URL)
		err := client.CheckAvailability(context.Background(), 3, time.Millisecond)
		require.ErrorIs(t, err, tts.ErrBackendUnavailable)
		assert.Equal(t, int32(3), fb.healthCalls.Load())
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := newClient(t, url)
		err := client.CheckAvailability(context.Background(), 2, time.Millisecond)
		require.ErrorIs(t, err, tts.ErrBackendUnavailable)
	})

	t.Run("context cancelled", func(t *testing.T) {
		fb, srv := newFakeBackend(t)
		fb.healthStatus.Store(http.StatusServiceUnavailable)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := newClient(t, srv.URL)
		err := client.CheckAvailability(ctx, 5, time.Hour)
		require.ErrorIs(t, err, tts.ErrBackendUnavailable)
	})
}

func TestFishSpeechUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newClient(t, url)

	_, err := client.Synthesize(context.Background(), "hello")
	require.ErrorIs(t, err, tts.ErrBackendUnavailable)

	_, err = client.SynthesizeStreaming(context.Background(), "hello")
	require.ErrorIs(t, err, tts.ErrBackendUnavailable)
}

func TestFishSpeechCancelledContext(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		_, _ = w.Write(wav.Encode(nil, 44100, 16, 1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newClient(t, srv.URL)
	_, err := client.Synthesize(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, tts.ErrBackendUnavailable))
}

func TestFishSpeechVoice(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.tts = func(w http.ResponseWriter, req tts.Request) {
		_, _ = w.Write(wav.Encode([]byte{0, 0}, 44100, 16, 1))
	}

	client := newClient(t, srv.URL, tts.WithReference("marui"))
	assert.Equal(t, "marui", client.Voice())

	clone := client.Clone()
	clone.SetVoice("tsukuyomi")
	assert.Equal(t, "marui", client.Voice())
	assert.Equal(t, "tsukuyomi", clone.Voice())

	_, err := clone.Synthesize(context.Background(), "a")
	require.NoError(t, err)
	req, _ := fb.lastRequest(t)
	assert.Equal(t, "tsukuyomi", req.ReferenceID)

	_, err = client.Synthesize(context.Background(), "b")
	require.NoError(t, err)
	req, _ = fb.lastRequest(t)
	assert.Equal(t, "marui", req.ReferenceID)
}

func TestNewFishSpeechRequiresBaseURL(t *testing.T) {
	_, err := tts.NewFishSpeech(tts.WithBaseURL(""))
	require.ErrorIs(t, err, tts.ErrNoBaseURL)
}

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	frame, err := mock.Synthesize(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, frame.PCM, 5*960)

	mock.SetVoice("marui")
	stream, err := mock.SynthesizeStreaming(ctx, "hello")
	require.NoError(t, err)

	var total int
	for {
		chunk, err := stream.Read()
		require.NoError(t, err)
		if chunk == nil {
			break
		}
		total += len(chunk)
	}
	assert.Equal(t, 5*960, total)

	assert.Equal(t, 1, mock.CallCount("Synthesize"))
	assert.Equal(t, 1, mock.CallCount("SynthesizeStreaming"))
	assert.Equal(t, "marui", mock.LastCall().Voice)

	mock.Reset()
	assert.Empty(t, mock.Calls())
	assert.Nil(t, mock.LastCall())
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	_, err := mock.Synthesize(ctx, "hello")
	assert.ErrorIs(t, err, testErr)
	_, err = mock.SynthesizeStreaming(ctx, "hello")
	assert.ErrorIs(t, err, testErr)
	assert.ErrorIs(t, mock.Health(ctx), testErr)
}

func TestChunkStream(t *testing.T) {
	stream := tts.NewChunkStream([]byte{1}, nil, []byte{}, []byte{2, 3})

	chunk, err := stream.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, chunk)

	chunk, err = stream.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, chunk)

	chunk, err = stream.Read()
	require.NoError(t, err)
	assert.Nil(t, chunk)

	require.NoError(t, stream.Close())
	assert.True(t, stream.Closed())
	_, err = stream.Read()
	assert.ErrorIs(t, err, tts.ErrStreamClosed)
}
