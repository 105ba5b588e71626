// Package archive reads data files that may be shipped compressed.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Load reads filename, decompressing .gz files and extracting the first
// entry of .zip and .7z archives. Anything else is returned as is.
func Load(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Decode(filepath.Ext(filename), data)
}

// Decode unpacks data according to the file extension ext
func Decode(ext string, data []byte) ([]byte, error) {
	var decoder io.ReadCloser
	var err error

	switch strings.ToLower(ext) {
	case ".gz":
		decoder, err = gzip.NewReader(bytes.NewReader(data))
	case ".zip":
		var r *zip.Reader
		r, err = zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			break
		}
		if len(r.File) == 0 {
			return nil, fmt.Errorf("zip archive is empty")
		}
		decoder, err = r.File[0].Open()
	case ".7z":
		var r *sevenzip.Reader
		r, err = sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			break
		}
		if len(r.File) == 0 {
			return nil, fmt.Errorf("7z archive is empty")
		}
		decoder, err = r.File[0].Open()
	default:
		return data, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %v", ext, err)
	}
	defer decoder.Close()

	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s archive: %v", ext, err)
	}
	return out, nil
}
