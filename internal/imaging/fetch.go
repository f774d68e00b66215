package imaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/jimlawless/whereami"
)

const maxImageBytes = 15 << 20

// Fetcher скачивает изображения каталога по URL с ограничением по времени и размеру.
// Ошибка скачивания — восстановимый сигнал: вызывающая сторона пропускает продукт.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Fetch скачивает изображение и декодирует его в каноничный RGB-битмап.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	data, err := f.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	img, err := Decode(data)
	if err != nil {
		return nil, e.Wrap(url, err)
	}

	return img, nil
}

// FetchBytes скачивает сырые байты изображения, проверяя Content-Type ответа.
// Если заголовок отсутствует, тип определяется по первым байтам тела.
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageUnavailable)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, e.Wrap(fmt.Sprintf("fetch %s: %v", url, err), e.ErrImageUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e.Wrap(fmt.Sprintf("fetch %s: status %d", url, resp.StatusCode), e.ErrImageUnavailable)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, e.Wrap(fmt.Sprintf("fetch %s: %v", url, err), e.ErrImageUnavailable)
	}
	if len(data) > maxImageBytes {
		return nil, e.Wrap(url, e.ErrFileTooLarge)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, e.Wrap(fmt.Sprintf("fetch %s: content type %s", url, contentType), e.ErrUnsupportedMediaType)
	}

	return data, nil
}
