package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	MessagingScope  = "https://www.googleapis.com/auth/firebase.messaging"
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	jwtBearerGrant    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime = time.Hour
)

// Token is a short-lived bearer credential for the push provider.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Source hands out access tokens.
type Source interface {
	AccessToken(ctx context.Context) (Token, error)
}

// ExchangeError is returned when the token endpoint rejects the assertion.
type ExchangeError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("token exchange failed with status %d", e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

// assertionClaims carries aud as a single string, the shape Google's token endpoint documents.
type assertionClaims struct {
	Issuer    string           `json:"iss"`
	Scope     string           `json:"scope"`
	Audience  string           `json:"aud"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

func (c assertionClaims) Valid() error {
	if c.ExpiresAt != nil && time.Now().After(c.ExpiresAt.Time) {
		return errors.New("assertion expired")
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Provider exchanges a signed service-account assertion for an access token on every call.
type Provider struct {
	account    ServiceAccount
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(account ServiceAccount, tokenURL string, logger zerolog.Logger, opts ...Option) *Provider {
	if tokenURL == "" {
		tokenURL = account.TokenURI
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	p := &Provider{
		account:    account,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		logger:     logger.With().Str("component", "credential_provider").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) AccessToken(ctx context.Context) (Token, error) {
	assertion, err := p.signAssertion()
	if err != nil {
		return Token{}, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Token{}, errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, errors.Wrap(err, "read token response")
	}

	if resp.StatusCode != http.StatusOK {
		exErr := &ExchangeError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, exErr)
		return Token{}, exErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" {
		return Token{}, errors.New("token response did not include an access token")
	}

	token := Token{Value: tr.AccessToken}
	if tr.ExpiresIn > 0 {
		token.ExpiresAt = p.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	p.logger.Debug().
		Str("client_email", p.account.ClientEmail).
		Time("expires_at", token.ExpiresAt).
		Msg("access token acquired")
	return token, nil
}

func (p *Provider) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(p.account.PrivateKey))
	if err != nil {
		return "", errors.Wrap(err, "parse service account private key")
	}

	issuedAt := p.now()
	claims := assertionClaims{
		Issuer:    p.account.ClientEmail,
		Scope:     MessagingScope,
		Audience:  p.tokenURL,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(assertionLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if p.account.PrivateKeyID != "" {
		token.Header["kid"] = p.account.PrivateKeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "sign assertion")
	}
	return signed, nil
}
