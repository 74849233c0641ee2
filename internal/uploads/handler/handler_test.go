package uploadshandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/hodatay-groupchat/internal/auth"
	response "github.com/kgellert/hodatay-groupchat/internal/lib"
	"github.com/kgellert/hodatay-groupchat/internal/uploads"
	uploadshandler "github.com/kgellert/hodatay-groupchat/internal/uploads/handler"
)

type fakePresigner struct{}

func (fakePresigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.test/put/" + *in.Key, Method: http.MethodPut}, nil
}

func (fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.test/get/" + *in.Key, Method: http.MethodGet}, nil
}

func newRouter() http.Handler {
	storage := uploads.NewStorage("bucket", "uploads/", nil, fakePresigner{})
	h := uploadshandler.New(storage, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{Sub: "alice"})))
		})
	})
	h.Routes(r)
	return r
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadsHandler_PresignUpload(t *testing.T) {
	router := newRouter()

	t.Run("should return a key under the owner prefix", func(t *testing.T) {
		r := require.New(t)

		rec := post(t, router, "/uploads/presign", `{"content_type":"image/png","filename":"cat.png"}`)
		r.Equal(http.StatusOK, rec.Code)

		var got uploads.PresignedUpload
		r.NoError(json.NewDecoder(rec.Body).Decode(&got))
		r.True(strings.HasPrefix(got.Key, "uploads/alice/"))
		r.True(strings.HasSuffix(got.Key, ".png"))
		r.Equal("https://s3.test/put/"+got.Key, got.UploadURL)
		r.Equal(int(uploads.PresignExpiry.Seconds()), got.ExpiresIn)
	})

	t.Run("should reject bad content types", func(t *testing.T) {
		cases := []struct {
			body string
			code string
		}{
			{`{}`, "content_type_required"},
			{`{"content_type":"text/html"}`, "invalid_content_type"},
			{`{"content_type":"image/png","filename":"cat.jpg"}`, "extension_mismatch"},
			{`{"content_type":`, "invalid_request"},
		}

		for _, tc := range cases {
			t.Run(tc.code, func(t *testing.T) {
				r := require.New(t)

				rec := post(t, router, "/uploads/presign", tc.body)
				r.Equal(http.StatusBadRequest, rec.Code)

				var body response.ErrorResponse
				r.NoError(json.NewDecoder(rec.Body).Decode(&body))
				r.Equal(tc.code, body.Error.Code)
			})
		}
	})
}

func TestUploadsHandler_PresignDownload(t *testing.T) {
	router := newRouter()
	r := require.New(t)

	rec := post(t, router, "/uploads/presign-download", `{"key":"uploads/alice/x.png"}`)
	r.Equal(http.StatusOK, rec.Code)

	var got struct {
		URL string `json:"url"`
	}
	r.NoError(json.NewDecoder(rec.Body).Decode(&got))
	r.Equal("https://s3.test/get/uploads/alice/x.png", got.URL)

	for _, body := range []string{`{"key":""}`, `{"key":"other/x.png"}`, `{"key":"uploads/../secret"}`} {
		rec := post(t, router, "/uploads/presign-download", body)
		r.Equal(http.StatusBadRequest, rec.Code, body)

		var errBody response.ErrorResponse
		r.NoError(json.NewDecoder(rec.Body).Decode(&errBody))
		r.Equal("invalid_key", errBody.Error.Code)
	}
}
