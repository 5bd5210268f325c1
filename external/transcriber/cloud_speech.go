package transcriber

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/carewire/consultscribe/internal/transcriber"
	"google.golang.org/api/option"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

// CloudSpeechTranscriber performs batch recognition on one chunk at a time.
// The client is shared; Recognize is safe for concurrent calls.
type CloudSpeechTranscriber struct {
	client     *speech.Client
	recognizer string
	language   string
	model      string
}

func NewCloudSpeechTranscriber(ctx context.Context, cfg CloudSpeechConfig) (transcriber.Transcriber, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	location := strings.TrimSpace(cfg.Location)
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	return &CloudSpeechTranscriber{
		client:     client,
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		language:   cfg.Language,
		model:      strings.TrimSpace(cfg.Model),
	}, nil
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: t.recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         t.model,
			LanguageCodes: []string{t.language},
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
			Features: &speechpb.RecognitionFeatures{},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: audio},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", transcriber.ErrTranscriptionService, err)
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (t *CloudSpeechTranscriber) Close() error {
	return t.client.Close()
}
