package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/metrics"
)

const downloadTimeout = 30 * time.Second

// Store скачивает вложения в локальный каталог, чтобы их URL не протухали.
type Store struct {
	http *http.Client
	dir  string
	log  zerolog.Logger
}

var _ domain.AttachmentStore = (*Store)(nil)

// NewStore создаёт хранилище вложений в указанном каталоге.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("каталог вложений: %w", err)
	}
	return &Store{
		http: &http.Client{Timeout: downloadTimeout},
		dir:  dir,
		log:  logger,
	}, nil
}

// Download скачивает вложение; неуспех — не ошибка, а признак false.
func (s *Store) Download(ctx context.Context, rawURL, filename string, messageID int64) (string, bool) {
	msgDir := filepath.Join(s.dir, fmt.Sprintf("msg_%d", messageID))
	if err := os.MkdirAll(msgDir, 0o755); err != nil {
		s.log.Error().Err(err).Int64("message", messageID).Msg("files: не удалось создать каталог")
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()
		return "", false
	}

	localPath := filepath.Join(msgDir, sanitizeFilename(filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		s.log.Error().Err(err).Str("url", rawURL).Msg("files: некорректный URL вложения")
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()
		return "", false
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	metrics.ObserveNetworkRequest("discord", "attachment_download", "cdn", start, err)
	if err != nil {
		s.log.Warn().Err(err).Str("file", filename).Msg("files: не удалось скачать вложение")
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Warn().Int("status", resp.StatusCode).Str("file", filename).Msg("files: вложение недоступно")
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()
		return "", false
	}

	out, err := os.Create(localPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", localPath).Msg("files: не удалось создать файл")
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()
		return "", false
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		s.log.Warn().Err(err).Str("file", filename).Msg("files: обрыв при скачивании")
		_ = os.Remove(localPath)
		metrics.AttachmentDownloads.WithLabelValues("error").Inc()
		return "", false
	}

	metrics.AttachmentDownloads.WithLabelValues("success").Inc()
	return localPath, true
}

// CleanupOlderThan удаляет вложения старше указанного числа дней.
func (s *Store) CleanupOlderThan(days int) int {
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted := 0
	_ = filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(path) == nil {
				deleted++
			}
		}
		return nil
	})
	return deleted
}

// sanitizeFilename оставляет только безопасные символы имени файла.
func sanitizeFilename(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "attachment_" + uuid.NewString()
	}
	return b.String()
}
