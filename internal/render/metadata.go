package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	dErrors "pdftrack/pkg/domain-errors"
)

// TrackedSuffix is inserted before the extension of the final artifact.
const TrackedSuffix = "_tracked"

var disableConfigDir sync.Once

// MetadataEmbedder merges string properties into a PDF's info dictionary.
type MetadataEmbedder struct {
	conf *model.Configuration
}

func NewMetadataEmbedder() *MetadataEmbedder {
	disableConfigDir.Do(func() {
		// Keep pdfcpu from creating a per-user config directory.
		model.ConfigPath = "disable"
	})
	return &MetadataEmbedder{conf: model.NewDefaultConfiguration()}
}

// Embed writes a copy of src with fields merged into its metadata and returns
// the copy's path. src is left untouched.
func (e *MetadataEmbedder) Embed(ctx context.Context, src string, fields map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := TrackedPath(src)
	if err := api.AddPropertiesFile(src, dst, fields, e.conf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeRenderFailed, fmt.Sprintf("embed metadata into %s", dst))
	}
	return dst, nil
}

// TrackedPath inserts TrackedSuffix before the extension of path. A path with
// no extension gets ".pdf" appended after the suffix.
func TrackedPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + TrackedSuffix + ".pdf"
	}
	return strings.TrimSuffix(path, ext) + TrackedSuffix + ext
}
