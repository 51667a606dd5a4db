package middleware // import "openpodcast.dev/forwarder/internal/http/middleware"

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

const compressionThreshold = 1024

// Gzip compresses responses larger than compressionThreshold, if the client
// accepts it.
func Gzip(next http.Handler) http.Handler {
	wrapper, err := gzhttp.NewWrapper(gzhttp.MinSize(compressionThreshold))
	if err != nil {
		panic(err)
	}
	return wrapper(next)
}
