package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"Briefcast/internal/ports"
)

const defaultChunkRunes = 180

// Client implements ports.Synthesizer over an HTTP text-to-speech
// endpoint. The endpoint accepts one short utterance per request, so long
// scripts are split on sentence boundaries and the returned MP3 segments
// are appended into a single track.
type Client struct {
	endpoint   string
	httpClient *http.Client
	chunkRunes int
}

var _ ports.Synthesizer = (*Client)(nil)

// NewClient wires the synthesis endpoint.
func NewClient(client *http.Client, endpoint string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: client, endpoint: endpoint, chunkRunes: defaultChunkRunes}
}

// Synthesize converts text into one MP3 byte stream for the given voice
// and language. Any chunk failure fails the whole synthesis; a partially
// narrated track must never reach the mix.
func (c *Client) Synthesize(ctx context.Context, text, voice, language string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	var audio []byte
	for i, chunk := range splitChunks(text, c.chunkRunes) {
		data, err := c.fetchChunk(ctx, chunk, voice, language)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		audio = append(audio, data...)
	}
	return audio, nil
}

func (c *Client) fetchChunk(ctx context.Context, chunk, voice, language string) ([]byte, error) {
	params := url.Values{}
	params.Set("q", chunk)
	params.Set("tl", language)
	params.Set("voice", voice)
	params.Set("client", "tw-ob")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Briefcast/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request synthesis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}
	return data, nil
}

// splitChunks breaks text into pieces of at most max runes, preferring
// sentence ends and falling back to word boundaries.
func splitChunks(text string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var chunks []string
	words := strings.Fields(text)
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentRunes = 0
		}
	}

	for _, word := range words {
		wordRunes := utf8.RuneCountInString(word)
		if currentRunes > 0 && currentRunes+1+wordRunes > max {
			flush()
		}
		if currentRunes > 0 {
			current.WriteByte(' ')
			currentRunes++
		}
		current.WriteString(word)
		currentRunes += wordRunes

		// Prefer breaking right after a sentence once past half capacity.
		if currentRunes > max/2 && strings.HasSuffix(word, ".") {
			flush()
		}
	}
	flush()
	return chunks
}
