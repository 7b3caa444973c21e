package audioserver

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/anatolykoptev/go_voice2word/internal/engine"
)

// DefaultMaxUploadBytes caps uploaded audio files.
const DefaultMaxUploadBytes = 50 << 20

var allowedExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".flac": true,
}

// AllowedUpload reports whether name has a supported audio extension (any case).
func AllowedUpload(name string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(name))]
}

func tooLargeMessage(limit int64) string {
	if limit < 1<<20 {
		return fmt.Sprintf("file too large, please upload an audio file under %d bytes", limit)
	}
	return fmt.Sprintf("file too large, please upload an audio file under %dMB", limit>>20)
}

// storeUpload validates fh and writes it to the upload directory as
// audio-<millis>-<random><ext>. The caller owns the returned path.
func (s *Service) storeUpload(c *fiber.Ctx, fh *multipart.FileHeader) (string, error) {
	if !AllowedUpload(fh.Filename) {
		return "", engine.NewError(engine.KindInvalidRequest, engine.StageAcquiring,
			"unsupported audio format, use mp3, wav, m4a, aac, ogg or flac", nil)
	}
	limit := s.maxUpload()
	if fh.Size > limit {
		return "", fiber.NewError(fiber.StatusRequestEntityTooLarge, tooLargeMessage(limit))
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	dst := filepath.Join(s.UploadDir, engine.UniqueName("audio", ext))
	if err := c.SaveFile(fh, dst); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dst, nil
}

func (s *Service) maxUpload() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}
