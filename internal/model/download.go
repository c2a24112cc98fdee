package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/resilience"
)

// Downloader fetches model archives over HTTP and unpacks them in place.
type Downloader struct {
	client *http.Client
	retry  resilience.Policy
	logger *slog.Logger
}

// NewDownloader creates a Downloader. A nil client selects
// http.DefaultClient.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		client: client,
		retry:  resilience.Policy{Attempts: 3},
		logger: slog.Default().With("component", "model-download"),
	}
}

// Fetch downloads url and stores the model at dest. Zip archives are
// searched for a member with dest's extension, .gz files are decompressed,
// anything else is stored as is. An existing dest is left untouched.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".download.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking model directory: %w", err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(dest); err == nil {
		d.logger.Info("model already present", "path", dest)
		return nil
	}

	tmpDir, err := os.MkdirTemp(dir, "download-*")
	if err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archive := filepath.Join(tmpDir, "model"+archiveExt(url))
	d.logger.Info("downloading model", "url", url, "dest", dest)
	err = resilience.Retry(ctx, "model-download", d.retry, func(ctx context.Context) error {
		return d.fetchOnce(ctx, url, archive)
	})
	if err != nil {
		return err
	}

	unpacked := filepath.Join(tmpDir, "model"+filepath.Ext(dest))
	switch archiveExt(url) {
	case ".zip":
		err = extractZipMember(archive, filepath.Ext(dest), unpacked)
	case ".gz":
		err = gunzip(archive, unpacked)
	default:
		unpacked = archive
	}
	if err != nil {
		return err
	}
	if err := os.Rename(unpacked, dest); err != nil {
		return fmt.Errorf("moving model into place: %w", err)
	}
	d.logger.Info("model downloaded", "path", dest)
	return nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("building request: %w", err))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("requesting %s: %s", url, resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return resilience.Permanent(apperrors.ModelNotFoundf("%v", err))
		}
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("creating %s: %w", path, err))
	}
	defer f.Close()

	pw := &progressWriter{total: resp.ContentLength, logger: d.logger, url: url}
	if _, err := io.Copy(io.MultiWriter(f, pw), resp.Body); err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	return f.Close()
}

func archiveExt(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ".zip"
	case strings.HasSuffix(lower, ".gz"):
		return ".gz"
	default:
		return filepath.Ext(lower)
	}
}

func extractZipMember(archive, ext, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ext) {
			continue
		}
		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s in archive: %w", f.Name, err)
		}
		defer src.Close()
		return copyToFile(dest, src)
	}
	return apperrors.ModelNotFoundf("archive has no %s member", ext)
}

func gunzip(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("opening gzip archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip header: %w", err)
	}
	defer zr.Close()
	return copyToFile(dest, zr)
}

func copyToFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}

// progressWriter logs download progress every tenth of the payload.
type progressWriter struct {
	total   int64
	written int64
	next    int64
	url     string
	logger  *slog.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 && p.written >= p.next {
		p.logger.Info("download progress", "url", p.url, "percent", p.written*100/p.total)
		p.next = p.written + p.total/10
	}
	return len(b), nil
}
