package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Sentence serves transformer sentence embeddings from an OpenAI-compatible
// /embeddings endpoint. The model "path" is the model id known to the server.
// A document vector is the mean of the embeddings of its sentences.
type Sentence struct {
	Name     string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// BatchSize caps the number of sentences sent per request.
	BatchSize int
}

// Load implements Provider. It probes the endpoint once to learn the
// embedding dimension.
func (p *Sentence) Load(path string) (Model, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	batch := p.BatchSize
	if batch <= 0 {
		batch = 32
	}
	name := p.Name
	if name == "" {
		name = path
	}
	m := &sentenceModel{
		name:     name,
		remoteID: path,
		endpoint: strings.TrimRight(p.Endpoint, "/"),
		apiKey:   p.APIKey,
		client:   &http.Client{Timeout: timeout},
		batch:    batch,
	}
	vecs, err := m.embed(context.Background(), []string{"probe"})
	if err != nil {
		return nil, err
	}
	m.dim = len(vecs[0])
	return m, nil
}

// Download implements Provider. Remote models are not downloaded.
func (p *Sentence) Download(context.Context, string, string) error {
	return apperrors.Configf("sentence models are served remotely and cannot be downloaded")
}

type sentenceModel struct {
	name     string
	remoteID string
	endpoint string
	apiKey   string
	client   *http.Client
	batch    int
	dim      int
}

func (m *sentenceModel) Name() string   { return m.name }
func (m *sentenceModel) Dimension() int { return m.dim }
func (m *sentenceModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// Vectorize averages sentence embeddings. Texts of at most one character
// map to the zero vector.
func (m *sentenceModel) Vectorize(ctx context.Context, text string) ([]float64, error) {
	if len([]rune(strings.TrimSpace(text))) <= 1 {
		return zeros(m.dim), nil
	}
	sentences := SplitSentences(text)
	sum := zeros(m.dim)
	for start := 0; start < len(sentences); start += m.batch {
		end := min(start+m.batch, len(sentences))
		vecs, err := m.embed(ctx, sentences[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			if len(v) != m.dim {
				return nil, apperrors.DimensionMismatchf("model %s returned %d dimensions, expected %d", m.name, len(v), m.dim)
			}
			for j, x := range v {
				sum[j] += x
			}
		}
	}
	for j := range sum {
		sum[j] /= float64(len(sentences))
	}
	return sum, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (m *sentenceModel) embed(ctx context.Context, inputs []string) ([][]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: m.remoteID, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting embeddings from %s: %w", m.endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 400 && bytes.Contains(bytes.ToLower(payload), []byte("not found"))) {
		return nil, apperrors.ModelNotFoundf("model %s is not served by %s", m.remoteID, m.endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request failed: %s", resp.Status)
	}

	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(out.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(out.Data), len(inputs))
	}
	vecs := make([][]float64, len(inputs))
	for i, d := range out.Data {
		pos := d.Index
		if pos < 0 || pos >= len(vecs) {
			pos = i
		}
		vecs[pos] = d.Embedding
	}
	return vecs, nil
}

var sentenceEnd = regexp.MustCompile(`[.!?…]+\s+`)

// SplitSentences splits text after terminal punctuation followed by
// whitespace. Empty pieces are dropped; text without a boundary is a single
// sentence.
func SplitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}
