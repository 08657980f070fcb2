// Package ort provides a sentence embedder backed by ONNX Runtime and a
// HuggingFace tokenizer. It requires cgo and the onnxruntime shared library.
package ort

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	onnx "github.com/yalue/onnxruntime_go"
)

// Config locates the runtime, model and tokenizer files.
type Config struct {
	SharedLibrary string `yaml:"shared_library" mapstructure:"shared_library"`
	ModelPath     string `yaml:"model_path" mapstructure:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path" mapstructure:"tokenizer_path"`
	MaxSeqLen     int    `yaml:"max_seq_len" mapstructure:"max_seq_len"`
	HiddenSize    int    `yaml:"hidden_size" mapstructure:"hidden_size"`
}

func (c *Config) applyDefaults() {
	if c.MaxSeqLen <= 0 {
		c.MaxSeqLen = 128
	}

	if c.HiddenSize <= 0 {
		c.HiddenSize = 384
	}
}

// Embedder mean-pools the last hidden state of a sentence-transformer model.
type Embedder struct {
	cfg     Config
	tk      *tokenizer.Tokenizer
	session *onnx.DynamicAdvancedSession

	mu    sync.Mutex
	cache map[string][]float32
}

// New initializes the ONNX environment and loads the model and tokenizer.
func New(cfg Config) (*Embedder, error) {
	cfg.applyDefaults()

	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, errors.New("ort embedder: model_path and tokenizer_path are required")
	}

	if cfg.SharedLibrary != "" {
		onnx.SetSharedLibraryPath(cfg.SharedLibrary)
	}

	if !onnx.IsInitialized() {
		if err := onnx.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", cfg.TokenizerPath, err)
	}

	session, err := onnx.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"}, nil)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", cfg.ModelPath, err)
	}

	return &Embedder{
		cfg:     cfg,
		tk:      tk,
		session: session,
		cache:   make(map[string][]float32),
	}, nil
}

// ModelID returns the model file name.
func (e *Embedder) ModelID() string {
	return filepath.Base(e.cfg.ModelPath)
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}

	err := e.session.Destroy()
	e.session = nil

	return err
}

// EmbedText embeds a single string, serving repeated texts from memory.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if vec, ok := e.cache[text]; ok {
		return append([]float32(nil), vec...), nil
	}

	if e.session == nil {
		return nil, errors.New("ort embedder is closed")
	}

	vec, err := e.encode(text)
	if err != nil {
		return nil, err
	}

	e.cache[text] = vec

	return append([]float32(nil), vec...), nil
}

func (e *Embedder) encode(text string) ([]float32, error) {
	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	ids := enc.GetIds()
	mask := enc.GetAttentionMask()
	types := enc.GetTypeIds()

	n := min(len(ids), e.cfg.MaxSeqLen)
	if n == 0 {
		return make([]float32, e.cfg.HiddenSize), nil
	}

	shape := onnx.NewShape(1, int64(n))

	idsT, err := onnx.NewTensor(shape, toInt64(ids[:n]))
	if err != nil {
		return nil, err
	}
	defer idsT.Destroy()

	maskT, err := onnx.NewTensor(shape, toInt64(mask[:n]))
	if err != nil {
		return nil, err
	}
	defer maskT.Destroy()

	typesT, err := onnx.NewTensor(shape, toInt64(padTo(types, n)))
	if err != nil {
		return nil, err
	}
	defer typesT.Destroy()

	out, err := onnx.NewEmptyTensor[float32](onnx.NewShape(1, int64(n), int64(e.cfg.HiddenSize)))
	if err != nil {
		return nil, err
	}
	defer out.Destroy()

	if err := e.session.Run([]onnx.Value{idsT, maskT, typesT}, []onnx.Value{out}); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}

	return meanPool(out.GetData(), mask[:n], e.cfg.HiddenSize), nil
}

// meanPool averages token vectors where the attention mask is set and
// L2-normalizes the result.
func meanPool(hidden []float32, mask []int, dim int) []float32 {
	vec := make([]float32, dim)

	var count float32
	for tok, m := range mask {
		if m == 0 {
			continue
		}

		count++
		row := hidden[tok*dim : (tok+1)*dim]
		for i, v := range row {
			vec[i] += v
		}
	}

	if count == 0 {
		return vec
	}

	var norm float64
	for i := range vec {
		vec[i] /= count
		norm += float64(vec[i]) * float64(vec[i])
	}

	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}

	return out
}

func padTo(in []int, n int) []int {
	if len(in) >= n {
		return in[:n]
	}

	out := make([]int, n)
	copy(out, in)

	return out
}
