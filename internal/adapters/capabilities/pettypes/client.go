package pettypes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pet-rehoming/internal/platform/httpclient"
	capport "pet-rehoming/internal/ports/capabilities"
)

var (
	ErrNotConfigured = errors.New("pet-types client not configured")
	ErrUnauthorized  = errors.New("pet-types unauthorized")
	ErrUpstream      = errors.New("pet-types upstream error")
)

type Config struct {
	BaseURL string
	APIKey  string

	APIKeyHeader string
	Timeout      time.Duration
}

// Client consulta el registro remoto de tipos de mascota.
type Client struct {
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), timeout)
	if err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		hc.DefaultHeaders = map[string]string{h: key}
	}
	return &Client{http: hc}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != ""
}

type petTypeResponse struct {
	Slug                     string `json:"slug"`
	Name                     string `json:"name"`
	PlacementRequestsAllowed bool   `json:"placement_requests_allowed"`
	WeightTrackingAllowed    bool   `json:"weight_tracking_allowed"`
	MicrochipsAllowed        bool   `json:"microchips_allowed"`
}

// PetType implementa capabilities.Registry. 404 => ErrUnknownPetType.
func (c *Client) PetType(ctx context.Context, slug string) (capport.PetType, error) {
	if !c.IsConfigured() {
		return capport.PetType{}, ErrNotConfigured
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return capport.PetType{}, capport.ErrUnknownPetType
	}

	var out petTypeResponse
	err := c.http.DoJSON(ctx, http.MethodGet, "/v1/pet-types/"+url.PathEscape(slug), nil, nil, &out)
	if err != nil {
		switch httpclient.StatusOf(err) {
		case http.StatusNotFound:
			return capport.PetType{}, capport.ErrUnknownPetType
		case http.StatusUnauthorized, http.StatusForbidden:
			return capport.PetType{}, ErrUnauthorized
		}
		return capport.PetType{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if strings.TrimSpace(out.Slug) == "" {
		out.Slug = slug
	}
	return capport.PetType{
		Slug:                     strings.ToLower(strings.TrimSpace(out.Slug)),
		Name:                     strings.TrimSpace(out.Name),
		PlacementRequestsAllowed: out.PlacementRequestsAllowed,
		WeightTrackingAllowed:    out.WeightTrackingAllowed,
		MicrochipsAllowed:        out.MicrochipsAllowed,
	}, nil
}
