package uploads

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",

	"application/pdf": ".pdf",

	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"audio/webm": ".weba",
	"audio/wav":  ".wav",
	"audio/mp4":  ".m4a",
	"audio/aac":  ".aac",
}

// ExtForContentType returns the key extension used for an allowed content type.
func ExtForContentType(ct string) (string, bool) {
	ext, ok := allowedContentTypes[ct]
	return ext, ok
}
