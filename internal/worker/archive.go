package worker

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ArchiveContentType is the content type of uploaded bulk archives.
const ArchiveContentType = "application/zip"

// ManifestName is the archive entry listing every generated URL.
const ManifestName = "urls.txt"

type archiveEntry struct {
	Name    string
	Content string
}

// archiveKey builds the object key "{owner}/bulk-{job}.zip".
func archiveKey(ownerID, jobID string) string {
	return fmt.Sprintf("%s/bulk-%s.zip", ownerID, jobID)
}

// buildArchive writes a DEFLATE zip holding the URL manifest followed by one
// entry per page.
func buildArchive(urls []string, entries []archiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeEntry(zw, ManifestName, strings.Join(urls, "\n")); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := writeEntry(zw, entry.Name, entry.Content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}
