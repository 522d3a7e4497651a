package textextract

import (
	"fmt"
	"io"
	"os"

	"github.com/lu4p/cat"
)

// extractOffice handles docx, odt and rtf. cat works on paths, so the upload
// is spooled to a temp file with the original extension.
func extractOffice(r io.Reader, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("spool upload failed: %w", err)
	}
	if n == 0 {
		return "", nil
	}

	text, err := cat.File(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("extract %s failed: %w", ext, err)
	}
	return text, nil
}
