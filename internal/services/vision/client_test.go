package vision_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/services"
	"chronicle/internal/services/vision"
)

const captionEndpoint = "https://vision.test/chat/completions"

func newTestClient(t *testing.T, apiKey string) *vision.Client {
	t.Helper()

	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return vision.NewClient(vision.Config{
		APIKey:  apiKey,
		BaseURL: captionEndpoint,
		Model:   "test/model",
	}, vision.WithHTTPClient(httpClient))
}

func TestCaptionImageSendsInlineData(t *testing.T) {
	client := newTestClient(t, "key")

	httpmock.RegisterResponder(http.MethodPost, captionEndpoint,
		func(req *http.Request) (*http.Response, error) {
			var payload struct {
				Model    string `json:"model"`
				Messages []struct {
					Content []struct {
						Type     string `json:"type"`
						ImageURL *struct {
							URL string `json:"url"`
						} `json:"image_url"`
					} `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Errorf("decode request: %v", err)
			}
			require.Len(t, payload.Messages, 1)
			require.Len(t, payload.Messages[0].Content, 2)
			image := payload.Messages[0].Content[1]
			assert.Equal(t, "image_url", image.Type)
			assert.True(t, strings.HasPrefix(image.ImageURL.URL, "data:image/jpeg;base64,"))

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "  A dog on a beach.  "}},
				},
			})
		})

	caption, err := client.CaptionImage(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "A dog on a beach.", caption)
}

func TestCaptionImageRequiresAPIKey(t *testing.T) {
	client := newTestClient(t, "")

	_, err := client.CaptionImage(context.Background(), []byte{0x01}, "image/jpeg")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrConfiguration)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestCaptionImageRejectsNonImage(t *testing.T) {
	client := newTestClient(t, "key")

	_, err := client.CaptionImage(context.Background(), []byte{0x01}, "video/mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrPermanent)
}

func TestCaptionImageRateLimitIsTransient(t *testing.T) {
	client := newTestClient(t, "key")
	httpmock.RegisterResponder(http.MethodPost, captionEndpoint,
		httpmock.NewStringResponder(http.StatusTooManyRequests, "slow down"))

	_, err := client.CaptionImage(context.Background(), []byte{0x01}, "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTransient)
	assert.True(t, services.IsRetryable(err))
}

func TestCaptionImageAPIErrorIsPermanent(t *testing.T) {
	client := newTestClient(t, "key")
	httpmock.RegisterResponder(http.MethodPost, captionEndpoint,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"error": map[string]any{"message": "model does not support images"},
		}))

	_, err := client.CaptionImage(context.Background(), []byte{0x01}, "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrPermanent)
	assert.Contains(t, err.Error(), "model does not support images")
}
