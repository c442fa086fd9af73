package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/asset"
	"github.com/rs/zerolog"
)

const defaultMaxFetchBytes = 50 << 20

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// MaxFetchBytes caps downloaded document size. Zero means 50 MiB.
	MaxFetchBytes int64
	HTTPClient    *http.Client
}

// StoredFile describes an uploaded asset. ResourceType is what Cloudinary
// classified the upload as: pdfs land as image, text and office files as raw.
type StoredFile struct {
	PublicID     string
	SecureURL    string
	ResourceType string
}

// Service stores study documents in Cloudinary and reads them back.
type Service struct {
	client     *cloudinary.Cloudinary
	folder     string
	maxBytes   int64
	httpClient *http.Client
	logger     zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = defaultMaxFetchBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Service{
		client:     cld,
		folder:     cfg.Folder,
		maxBytes:   cfg.MaxFetchBytes,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (StoredFile, error) {
	folder := strings.Trim(s.folder, "/")
	publicID := buildPublicID(name)

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return StoredFile{}, fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	stored := StoredFile{PublicID: result.PublicID, SecureURL: result.SecureURL, ResourceType: result.ResourceType}
	if stored.SecureURL == "" {
		url, err := s.DeliveryURL(stored.PublicID, stored.ResourceType)
		if err != nil {
			return StoredFile{}, err
		}
		stored.SecureURL = url
	}

	s.logger.Info().
		Str("public_id", stored.PublicID).
		Str("resource_type", stored.ResourceType).
		Msg("file uploaded to cloudinary")

	return stored, nil
}

// DeliveryURL builds the delivery url for a public id under the given
// resource type. Unknown types resolve as images.
func (s *Service) DeliveryURL(publicID, resourceType string) (string, error) {
	var (
		a   *asset.Asset
		err error
	)
	switch api.AssetType(resourceType) {
	case api.File:
		a, err = s.client.File(publicID)
	case api.Video:
		a, err = s.client.Video(publicID)
	default:
		a, err = s.client.Image(publicID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve asset %s: %w", publicID, err)
	}
	url, err := a.String()
	if err != nil {
		return "", fmt.Errorf("build delivery url for %s: %w", publicID, err)
	}
	return url, nil
}

// Fetch downloads the asset at storagePath. Documents store their delivery
// url; a bare public id is treated as an image asset.
func (s *Service) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	target, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	return download(ctx, s.httpClient, target, s.maxBytes)
}

func (s *Service) resolve(storagePath string) (string, error) {
	storagePath = strings.TrimSpace(storagePath)
	if storagePath == "" {
		return "", fmt.Errorf("empty storage path")
	}
	if strings.HasPrefix(storagePath, "https://") || strings.HasPrefix(storagePath, "http://") {
		return storagePath, nil
	}

	return s.DeliveryURL(storagePath, string(api.Image))
}

func download(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download asset: unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download asset: %w", err)
	}
	if int64(len(payload)) > maxBytes {
		return nil, fmt.Errorf("download asset: exceeds %d bytes", maxBytes)
	}
	return payload, nil
}

func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("document-%d", time.Now().Unix())
	}

	return fmt.Sprintf("%s-%d", base, time.Now().Unix())
}
