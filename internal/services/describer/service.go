package describer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"argus-pipeline-go/internal/config"
	"argus-pipeline-go/internal/models"
)

// Service is the Description Generator client. The gateway may run provider
// fallback internally; the pipeline treats it as a single opaque call per
// event. A circuit breaker keeps a dead provider from tying up workers.
type Service struct {
	cfg     *config.Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// describeRequest is what the gateway receives for one frame.
type describeRequest struct {
	CameraID   string    `json:"camera_id"`
	CameraName string    `json:"camera_name"`
	FrameRef   string    `json:"frame_ref"`
	Timestamp  time.Time `json:"timestamp"`
	Objects    []string  `json:"objects_hint,omitempty"`
}

// NewService wires the client. Per-call deadlines come from the configured
// describer timeout.
func NewService(cfg *config.Config) *Service {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "describer",
		Interval: 30 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Describer circuit breaker state change")
		},
	})

	log.Info().Str("url", cfg.DescriberURL).Msg("Initializing description generator client")

	return &Service{
		cfg:     cfg,
		client:  &http.Client{},
		breaker: breaker,
	}
}

// Describe requests a description for one detection event.
func (s *Service) Describe(ctx context.Context, event *models.DetectionEvent) (*models.DescribeResult, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.call(ctx, event)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("describer unavailable: %w", err)
		}
		return nil, err
	}
	return out.(*models.DescribeResult), nil
}

func (s *Service) call(ctx context.Context, event *models.DetectionEvent) (*models.DescribeResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.DescriberTimeout)
	defer cancel()

	body, err := json.Marshal(describeRequest{
		CameraID:   event.CameraID,
		CameraName: event.CameraName,
		FrameRef:   event.FrameRef,
		Timestamp:  event.Timestamp,
		Objects:    event.Objects,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.cfg.DescriberURL+"/api/v1/describe", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("describer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("describer returned status %d", resp.StatusCode)
	}

	var result models.DescribeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("describer response decode failed: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("describer reported failure: %s", result.Error)
	}
	return &result, nil
}

// HealthCheck probes the gateway. Used by the health endpoint; a failure
// here does not open the breaker.
func (s *Service) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.cfg.DescriberURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("describer health returned status %d", resp.StatusCode)
	}
	return nil
}
