package services

import (
	"fmt"
	"net/url"
	"strings"
)

// DeepLinkProvider turns a referral code into a shareable short URL.
// Production would call a third-party deferred deep-link service; the mock
// renders the link locally with the same shape.
type DeepLinkProvider interface {
	ShortURL(code, campaign string) string
}

type MockDeepLinkProvider struct {
	BaseURL string
}

func NewMockDeepLinkProvider(baseURL string) *MockDeepLinkProvider {
	if baseURL == "" {
		baseURL = "https://ccaps.link"
	}
	return &MockDeepLinkProvider{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (p *MockDeepLinkProvider) ShortURL(code, campaign string) string {
	return fmt.Sprintf("%s/i/%s?utm_source=%s", p.BaseURL, code, url.QueryEscape(campaign))
}
