package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls   int
	batches [][]string
	fn      func(call int, texts []string) ([][]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.calls++
	batch := append([]string(nil), texts...)
	f.batches = append(f.batches, batch)
	return f.fn(f.calls, texts)
}

func (f *fakeEmbedder) ModelName() string { return "fake-model" }

func identityVectors(texts []string) [][]float32 {
	out := make([][]float32, 0, len(texts))
	for i := range texts {
		out = append(out, []float32{float32(i), float32(len(texts[i]))})
	}
	return out
}

func TestEmbedClientBatchSplitting(t *testing.T) {
	fake := &fakeEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		return identityVectors(texts), nil
	}}
	client := NewEmbedClient(fake, 2, 3, time.Millisecond)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := client.GetEmbeddings(context.Background(), texts, TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	require.Equal(t, 3, fake.calls)
	require.Equal(t, [][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}, fake.batches)
	// vectors arrive in input order
	for i, text := range texts {
		require.Equal(t, float32(len(text)), vectors[i][1])
	}
}

func TestEmbedClientRetriesTransientErrors(t *testing.T) {
	fake := &fakeEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		if call < 3 {
			return nil, &StatusError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}
		}
		return identityVectors(texts), nil
	}}
	client := NewEmbedClient(fake, 10, 3, time.Millisecond)

	vectors, err := client.GetEmbeddings(context.Background(), []string{"x"}, TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Equal(t, 3, fake.calls)
}

func TestEmbedClientGivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		return nil, &StatusError{StatusCode: http.StatusServiceUnavailable, Body: "down"}
	}}
	client := NewEmbedClient(fake, 10, 3, time.Millisecond)

	_, err := client.GetEmbeddings(context.Background(), []string{"x"}, TaskTypeQuery)
	require.Error(t, err)
	require.Equal(t, 3, fake.calls)
}

func TestEmbedClientFatalErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "bad request", err: &StatusError{StatusCode: http.StatusBadRequest, Body: "nope"}},
		{name: "unavailable", err: ErrUnavailable},
		{name: "protocol", err: fmt.Errorf("embedding count mismatch")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
				return nil, tt.err
			}}
			client := NewEmbedClient(fake, 10, 3, time.Millisecond)
			_, err := client.GetEmbeddings(context.Background(), []string{"x"}, TaskTypeQuery)
			require.Error(t, err)
			require.Equal(t, 1, fake.calls)
		})
	}
}

func TestEmbedClientCountMismatchIsFatal(t *testing.T) {
	fake := &fakeEmbedder{fn: func(call int, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}
	client := NewEmbedClient(fake, 10, 3, time.Millisecond)

	_, err := client.GetEmbeddings(context.Background(), []string{"a", "b"}, TaskTypeDocument)
	require.ErrorContains(t, err, "count mismatch")
	require.Equal(t, 1, fake.calls)
}

func TestOpenAIEmbedReordersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reply out of order on purpose; the index field is authoritative.
		fmt.Fprint(w, `{"data":[
			{"index":2,"embedding":[3]},
			{"index":0,"embedding":[1]},
			{"index":1,"embedding":[2]}
		]}`)
	}))
	defer server.Close()

	provider := &openAIEmbedProvider{apiKey: "test-key", baseURL: server.URL}
	vectors, err := provider.Embed(context.Background(), "m", []string{"a", "b", "c"}, "")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
}

func TestOpenAIEmbedRejectsBadIndices(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "duplicate index", body: `{"data":[{"index":0,"embedding":[1]},{"index":0,"embedding":[2]}]}`},
		{name: "index out of range", body: `{"data":[{"index":0,"embedding":[1]},{"index":5,"embedding":[2]}]}`},
		{name: "count mismatch", body: `{"data":[{"index":0,"embedding":[1]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			provider := &openAIEmbedProvider{apiKey: "test-key", baseURL: server.URL}
			_, err := provider.Embed(context.Background(), "m", []string{"a", "b"}, "")
			require.Error(t, err)
		})
	}
}

func TestOpenAIEmbedStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := &openAIEmbedProvider{apiKey: "test-key", baseURL: server.URL}
	_, err := provider.Embed(context.Background(), "m", []string{"a"}, "")
	require.Error(t, err)
	require.True(t, IsRetryable(err))
}

func TestOpenAIEmbedMissingKey(t *testing.T) {
	provider := &openAIEmbedProvider{apiKey: "", baseURL: defaultOpenAIBaseURL}
	_, err := provider.Embed(context.Background(), "m", []string{"a"}, "")
	require.ErrorIs(t, err, ErrUnavailable)
	require.False(t, IsRetryable(err))
}
