package llm

import (
	"encoding/base64"
	"net/http"
)

// DataURL inlines an image for providers that accept data: URLs.
func DataURL(img ImagePart) string {
	mt := img.MIMEType
	if mt == "" {
		mt = http.DetectContentType(img.Data)
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
