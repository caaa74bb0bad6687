package reporter

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/rohitxdev/nftsol-api/util"
)

var allowedHeaders = util.NewSet("Content-Type", "User-Agent", "X-Request-Id")

func scrubRequest(req *sentry.Request, keepBody bool) {
	if req == nil {
		return
	}

	req.Cookies = ""
	if !keepBody {
		req.Data = ""
	}

	for name := range req.Headers {
		if !allowedHeaders.Has(http.CanonicalHeaderKey(name)) {
			delete(req.Headers, name)
		}
	}
}
