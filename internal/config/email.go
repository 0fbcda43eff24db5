package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"MemberPortal/internal/apperrors"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type ResendConfig struct {
	APIKey string
	APIURL string
	From   string
}

func NewResendConfig(logger *zerolog.Logger) *ResendConfig {
	apiKey := os.Getenv("RESEND_API_KEY")
	apiURL := os.Getenv("RESEND_API_URL")
	fromEmail := os.Getenv("FROM_EMAIL")
	if apiKey == "" || apiURL == "" || fromEmail == "" {
		logger.Fatal().Msg("missing RESEND_API_KEY, RESEND_API_URL or FROM_EMAIL")
	}
	return &ResendConfig{
		APIKey: apiKey,
		APIURL: apiURL,
		From:   fromEmail,
	}
}

type EmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html"`
}

// EmailService sends transactional email through the Resend HTTP API.
// It is a best-effort side channel: callers log failures and move on.
type EmailService struct {
	Config *ResendConfig
	client *http.Client
	logger *zerolog.Logger
}

func NewEmailService(lc fx.Lifecycle, config *ResendConfig, logger *zerolog.Logger) *EmailService {
	service := &EmailService{
		Config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().Msg("email service initialized")
			return nil
		},
	})
	return service
}

func (e *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	payload := EmailRequest{
		From:    e.Config.From,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Dependency("email", fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return apperrors.Dependency("email", fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+e.Config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return apperrors.Dependency("email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResponse map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errorResponse)
		return apperrors.Dependency("email", fmt.Errorf("status %d: %v", resp.StatusCode, errorResponse))
	}

	e.logger.Debug().Str("to", to).Msg("email sent")
	return nil
}
