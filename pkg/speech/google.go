package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	speechapi "google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-mindclick/internal/httpc"
	"github.com/teslashibe/go-mindclick/pkg/audioio"
)

// GoogleConfig configures the Cloud Speech-to-Text client.
type GoogleConfig struct {
	// APIKey authenticates with an API key. Takes precedence over CredentialsFile.
	APIKey string
	// CredentialsFile is a service account JSON key.
	CredentialsFile string
	// Language is a BCP-47 code, default "en-US".
	Language string
	// Endpoint overrides the service URL (tests).
	Endpoint string
	// HTTPClient is the base client; default httpc.Client.
	HTTPClient *http.Client
}

// GoogleTranscriber calls speech.recognize on Google Cloud Speech-to-Text v1.
type GoogleTranscriber struct {
	svc      *speechapi.Service
	language string
}

// NewGoogleTranscriber builds an authenticated client.
func NewGoogleTranscriber(ctx context.Context, cfg GoogleConfig) (*GoogleTranscriber, error) {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	base := cfg.HTTPClient
	if base == nil {
		base = httpc.Client
	}

	var client *http.Client
	switch {
	case cfg.APIKey != "":
		rt := base.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		client = &http.Client{
			Timeout:   base.Timeout,
			Transport: &transport.APIKey{Key: cfg.APIKey, Transport: rt},
		}
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, speechapi.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		client = oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), creds.TokenSource)
	default:
		return nil, errors.New("GOOGLE_API_KEY or GOOGLE_APPLICATION_CREDENTIALS is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := speechapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	return &GoogleTranscriber{svc: svc, language: cfg.Language}, nil
}

// Transcribe sends LINEAR16 audio and returns the top alternative.
// An empty result is ErrUnintelligible; any request failure is
// ErrServiceUnreachable.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", ErrUnintelligible
	}
	req := &speechapi.RecognizeRequest{
		Config: &speechapi.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(sampleRate),
			LanguageCode:    g.language,
			MaxAlternatives: 1,
		},
		Audio: &speechapi.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.EncodeS16LE(samples)),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: %d %s", ErrServiceUnreachable, apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrUnintelligible
	}
	return strings.Join(parts, " "), nil
}
