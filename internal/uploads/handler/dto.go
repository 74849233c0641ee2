package uploadshandler

type presignUploadRequest struct {
	Filename    *string `json:"filename"`
	ContentType string  `json:"content_type"`
}

type presignDownloadRequest struct {
	Key string `json:"key"`
}

type presignDownloadResponse struct {
	URL string `json:"url"`
}
