package constants

import "strings"

// FileKind is the coarse kind of an uploaded document.
type FileKind string

const (
	PDF   FileKind = "pdf"
	IMAGE FileKind = "image"
)

// AllowedContentTypes holds the upload MIME types accepted for analysis and chat attachments.
var AllowedContentTypes = map[string]FileKind{
	"image/jpeg":      IMAGE,
	"image/jpg":       IMAGE,
	"image/png":       IMAGE,
	"application/pdf": PDF,
}

// AllowedExtensions maps file extensions to kinds when a client omits the content type.
var AllowedExtensions = map[string]FileKind{
	"pdf":  PDF,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"png":  IMAGE,
}

const (
	// MaxAnalysisUploadBytes caps the multipart body of /ai/analyze.
	MaxAnalysisUploadBytes int64 = 20 << 20
	// MaxAttachmentBytes caps chat attachments.
	MaxAttachmentBytes int64 = 10 << 20
	// MaxChatMessageChars is the longest accepted chat message.
	MaxChatMessageChars = 4000
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeContentType strips parameters such as "; charset=" and lowercases.
func NormalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// KindOf resolves the kind of an upload, preferring the declared content type.
func KindOf(contentType, filename string) (FileKind, bool) {
	if k, ok := AllowedContentTypes[NormalizeContentType(contentType)]; ok {
		return k, true
	}
	if contentType != "" && NormalizeContentType(contentType) != "application/octet-stream" {
		return "", false
	}
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		k, ok := AllowedExtensions[NormalizeExt(filename[i:])]
		return k, ok
	}
	return "", false
}

// AllowedContentTypeList is the human readable list used in validation errors.
func AllowedContentTypeList() string {
	return "image/jpeg, image/jpg, image/png, application/pdf"
}

// CanonicalContentType resolves the MIME type to store and send for an upload.
// image/jpg is reported as image/jpeg.
func CanonicalContentType(declared, filename string) (string, bool) {
	kind, ok := KindOf(declared, filename)
	if !ok {
		return "", false
	}
	ct := NormalizeContentType(declared)
	if _, known := AllowedContentTypes[ct]; !known {
		switch {
		case kind == PDF:
			ct = "application/pdf"
		case strings.HasSuffix(strings.ToLower(filename), ".png"):
			ct = "image/png"
		default:
			ct = "image/jpeg"
		}
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct, true
}
