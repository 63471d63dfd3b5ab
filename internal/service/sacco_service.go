package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/saccosphere/memberclient/internal/domain/auth"
)

// Sacco is one entry of the sacco directory.
type Sacco struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsMember    bool   `json:"is_member"`
}

// SaccoPage is one page of the directory.
type SaccoPage struct {
	Results    []Sacco `json:"results"`
	TotalPages int     `json:"total_pages"`
}

// SaccoService reads the sacco directory through the gateway.
type SaccoService struct {
	gateway *Gateway
	path    string
}

// NewSaccoService creates a SaccoService.
func NewSaccoService(gateway *Gateway, path string) *SaccoService {
	if path == "" {
		path = DefaultPaths().Saccos
	}
	return &SaccoService{gateway: gateway, path: path}
}

// List fetches one page, optionally filtered by search.
func (s *SaccoService) List(ctx context.Context, page int, search string) (*SaccoPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("search", search)

	resp, err := s.gateway.Get(ctx, s.path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list saccos: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("list saccos: %w", &APIError{StatusCode: resp.StatusCode, Message: auth.EnvelopeMessage(resp.Body)})
	}

	var result SaccoPage
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, fmt.Errorf("list saccos: %w", err)
	}
	return &result, nil
}
