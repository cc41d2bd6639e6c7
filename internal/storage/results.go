// internal/storage/results.go
package storage

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ParseURI splits an s3://bucket/key URI into its parts.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in uri: %q", uri)
	}
	return bucket, key, nil
}

// ExtractPredictions unpacks the provider's output archive (tar.gz) and
// writes the contained predictions file into destDir, returning its path.
// Entry names are flattened to their base name so archive paths cannot
// escape destDir.
func ExtractPredictions(archivePath, destDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("read gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read archive entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(hdr.Name)
		if !isPredictionsFile(name) {
			continue
		}

		dest := filepath.Join(destDir, name)
		out, err := os.Create(dest)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", dest, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return "", fmt.Errorf("extract %s: %w", name, err)
		}
		if err := out.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", dest, err)
		}
		return dest, nil
	}
	return "", fmt.Errorf("no predictions file in %s", archivePath)
}

func isPredictionsFile(name string) bool {
	return name == "predictions.jsonl" || strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".out")
}
