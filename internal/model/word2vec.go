package model

import (
	"context"
	"path/filepath"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Word2Vec loads word2vec models. Files ending in .bin use the binary
// layout, anything else the text layout. Tagger, when set, maps tokens onto
// tagged keys; without it untagged tokens fall back to their most frequent
// tagged form.
type Word2Vec struct {
	Name       string
	Tagger     Tagger
	Downloader *Downloader
}

// Load implements Provider.
func (p *Word2Vec) Load(path string) (Model, error) {
	kv, err := loadVectors(p.modelName(path), path, strings.EqualFold(filepath.Ext(path), ".bin"), p.Tagger)
	if err != nil {
		return nil, err
	}
	return kv, nil
}

// Download implements Provider. Models are published as zip archives.
func (p *Word2Vec) Download(ctx context.Context, url, dest string) error {
	if !strings.HasSuffix(strings.ToLower(url), ".zip") {
		return apperrors.Configf("word2vec models are downloaded from .zip archives, got %s", url)
	}
	return p.downloader().Fetch(ctx, url, dest)
}

func (p *Word2Vec) modelName(path string) string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (p *Word2Vec) downloader() *Downloader {
	if p.Downloader != nil {
		return p.Downloader
	}
	return NewDownloader(nil)
}

// FastText loads fastText word vectors published in the text .vec format.
// Sentence vectors average unit-normalized word vectors, with newlines
// treated as spaces.
type FastText struct {
	Name       string
	Downloader *Downloader
}

// Load implements Provider.
func (p *FastText) Load(path string) (Model, error) {
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		return nil, apperrors.Configf("fasttext binary models are not supported, use the .vec release: %s", path)
	}
	name := p.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	kv, err := loadVectors(name, path, false, nil)
	if err != nil {
		return nil, err
	}
	return kv, nil
}

// Download implements Provider. Models are published gzip-compressed.
func (p *FastText) Download(ctx context.Context, url, dest string) error {
	d := p.Downloader
	if d == nil {
		d = NewDownloader(nil)
	}
	return d.Fetch(ctx, url, dest)
}
