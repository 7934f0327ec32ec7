package bot

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultDownloadTimeout is the default timeout for file downloads
	DefaultDownloadTimeout = 30 * time.Second
	// DefaultMaxFileSize is the default maximum photo or workbook size (10MB)
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// FileDownloader fetches Telegram files with a size limit.
type FileDownloader struct {
	client  *resty.Client
	maxSize int64
}

// NewFileDownloader creates a FileDownloader with default settings.
func NewFileDownloader() *FileDownloader {
	return &FileDownloader{
		client:  resty.New().SetDebug(false).SetTimeout(DefaultDownloadTimeout),
		maxSize: DefaultMaxFileSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (d *FileDownloader) WithTimeout(timeout time.Duration) *FileDownloader {
	d.client.SetTimeout(timeout)
	return d
}

// WithMaxSize sets a custom maximum file size.
func (d *FileDownloader) WithMaxSize(maxSize int64) *FileDownloader {
	d.maxSize = maxSize
	return d
}

// MaxSize returns the configured size limit in bytes.
func (d *FileDownloader) MaxSize() int64 {
	return d.maxSize
}

// DownloadFromURL downloads a file, enforcing the size limit even when the
// server sends no Content-Length.
func (d *FileDownloader) DownloadFromURL(ctx context.Context, fileURL string) ([]byte, error) {
	res, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	if res.RawResponse.ContentLength > d.maxSize {
		return nil, &FileTooLargeError{Size: res.RawResponse.ContentLength, Limit: d.maxSize}
	}

	data, err := io.ReadAll(io.LimitReader(body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if int64(len(data)) > d.maxSize {
		return nil, &FileTooLargeError{Limit: d.maxSize}
	}

	return data, nil
}

// DownloadFromTelegramFileID resolves a Telegram file ID and downloads it.
func (d *FileDownloader) DownloadFromTelegramFileID(
	ctx context.Context,
	getFileDirectURL func(fileID string) (string, error),
	fileID string,
) ([]byte, error) {
	log.Info().Str("fileID", fileID).Msg("downloading telegram file")

	url, err := getFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file URL: %w", err)
	}

	return d.DownloadFromURL(ctx, url)
}

// FileTooLargeError is returned when a download exceeds the size limit.
// Size is zero when the server did not announce the length.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("file too large: %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
	}
	return fmt.Sprintf("file too large: exceeds limit of %d bytes", e.Limit)
}
