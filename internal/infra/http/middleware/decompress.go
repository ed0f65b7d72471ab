package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/apierror"
)

// DecompressConfig configures the decompression middleware.
type DecompressConfig struct {
	// MaxDecompressedSize is the maximum size of the decompressed body.
	MaxDecompressedSize int64
}

// DefaultDecompressConfig returns the default configuration.
func DefaultDecompressConfig() *DecompressConfig {
	return &DecompressConfig{
		MaxDecompressedSize: 16 * 1024 * 1024,
	}
}

// Decompress transparently decompresses request bodies based on the
// Content-Encoding header. Supports gzip and zstd. Place before the body
// limit middleware so the decompressed size is what gets limited.
func Decompress(config *DecompressConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultDecompressConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead ||
				r.Method == http.MethodOptions || r.Method == http.MethodTrace {
				next.ServeHTTP(w, r)
				return
			}

			encoding := strings.ToLower(r.Header.Get("Content-Encoding"))
			if encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}

			var reader io.ReadCloser
			switch encoding {
			case "gzip":
				gz, err := gzip.NewReader(r.Body)
				if err != nil {
					apierror.BadRequest("Invalid gzip body").WriteJSON(w)
					return
				}
				reader = gz
			case "zstd":
				zr, err := zstd.NewReader(r.Body)
				if err != nil {
					apierror.BadRequest("Invalid zstd body").WriteJSON(w)
					return
				}
				reader = zr.IOReadCloser()
			default:
				apierror.BadRequest("Unsupported Content-Encoding: " + encoding).WriteJSON(w)
				return
			}
			defer reader.Close()

			r.Body = io.NopCloser(io.LimitReader(reader, config.MaxDecompressedSize))
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1

			next.ServeHTTP(w, r)
		})
	}
}
