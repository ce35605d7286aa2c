package imagecdn

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
)

const baseEndpoint = "https://api.cloudinary.com/v1_1"

// Client uploads image assets to the Cloudinary REST API using signed
// requests.
type Client struct {
	httpClient *http.Client
	cloudName  string
	apiKey     string
	apiSecret  string
	folder     string
	now        func() time.Time
	endpoint   string
}

// UploadResult carries the durable outputs of a successful upload.
type UploadResult struct {
	SecureURL string
	PublicID  string
	Bytes     int64
}

func NewClient(cfg config.ImageCDNConfig, logg *logger.Logger) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("image cdn credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		cloudName:  cfg.CloudName,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		folder:     cfg.UploadFolder,
		now:        time.Now,
		endpoint:   baseEndpoint,
	}

	if logg != nil {
		logg.Info(context.Background(), "image cdn client initialized")
	}

	return client, nil
}

// Upload pushes one image to the CDN and returns its public HTTPS URL. The
// reader is consumed fully; callers own closing it.
func (c *Client) Upload(ctx context.Context, fileName string, body io.Reader) (UploadResult, error) {
	if c == nil {
		return UploadResult{}, errors.New("image cdn client not initialized")
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.apiKey

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return UploadResult{}, fmt.Errorf("writing upload field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return UploadResult{}, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return UploadResult{}, fmt.Errorf("buffering upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("finalizing upload body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.endpoint, url.PathEscape(c.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return UploadResult{}, fmt.Errorf("image upload returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var uploadResp struct {
		SecureURL string `json:"secure_url"`
		PublicID  string `json:"public_id"`
		Bytes     int64  `json:"bytes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return UploadResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if uploadResp.SecureURL == "" {
		return UploadResult{}, errors.New("image upload response missing secure url")
	}

	return UploadResult{
		SecureURL: uploadResp.SecureURL,
		PublicID:  uploadResp.PublicID,
		Bytes:     uploadResp.Bytes,
	}, nil
}

// Destroy removes an uploaded image by its public ID. Missing assets return
// no error; the API reports "not found" with a 200.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if c == nil {
		return errors.New("image cdn client not initialized")
	}
	if publicID == "" {
		return errors.New("public id is required")
	}

	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("signature", c.sign(params))
	form.Set("api_key", c.apiKey)

	endpoint := fmt.Sprintf("%s/%s/image/destroy", c.endpoint, url.PathEscape(c.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("image destroy returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}

// sign produces the request signature: the sorted query-style parameter
// string concatenated with the API secret, hashed with SHA-1.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	payload := strings.Join(pairs, "&") + c.apiSecret

	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// PublicIDFromURL recovers the asset's public ID from a delivery URL so
// stored URLs can be destroyed later. Returns "" when the URL does not look
// like a CDN delivery path.
func PublicIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	uploadIdx := -1
	for i, segment := range segments {
		if segment == "upload" {
			uploadIdx = i
			break
		}
	}
	if uploadIdx < 0 || uploadIdx == len(segments)-1 {
		return ""
	}
	rest := segments[uploadIdx+1:]
	// Skip the version segment (v123...) when present.
	if len(rest) > 1 && strings.HasPrefix(rest[0], "v") {
		if _, err := strconv.ParseInt(rest[0][1:], 10, 64); err == nil {
			rest = rest[1:]
		}
	}
	joined := strings.Join(rest, "/")
	ext := path.Ext(joined)
	return strings.TrimSuffix(joined, ext)
}

// IsDeliveryURL reports whether the URL points at the image CDN's delivery
// host, meaning it needs no signing to be served.
func IsDeliveryURL(rawURL string) bool {
	return strings.Contains(rawURL, "cloudinary.com")
}
