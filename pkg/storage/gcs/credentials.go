package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
)

const (
	defaultTokenURI  = "https://oauth2.googleapis.com/token"
	metadataTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	scope            = "https://www.googleapis.com/auth/devstorage.read_write"
	jwtBearerGrant   = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// refreshMargin renews a token this long before Google expires it.
	refreshMargin = time.Minute
)

// fetchFunc obtains a fresh OAuth access token and its expiry.
type fetchFunc func(ctx context.Context) (string, time.Time, error)

// tokenSource hands out a cached access token, refetching near expiry.
type tokenSource struct {
	fetch fetchFunc

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expiry) > refreshMargin {
		return t.token, nil
	}
	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token, t.expiry = token, expiry
	return token, nil
}

// newTokenSource prefers inline credentials JSON, then a credentials file,
// then the metadata server of the VM or container the API runs on.
func newTokenSource(hc *http.Client, gcp config.GCPConfig) (*tokenSource, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		var err error
		if raw, err = os.ReadFile(gcp.ApplicationCredentials); err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
	}
	if len(raw) == 0 {
		return &tokenSource{fetch: func(ctx context.Context) (string, time.Time, error) {
			return fetchMetadataToken(ctx, hc)
		}}, nil
	}

	var sa struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account credentials need client_email and private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	key, err := parsePrivateKey(sa.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &tokenSource{fetch: func(ctx context.Context) (string, time.Time, error) {
		return fetchServiceAccountToken(ctx, hc, sa.ClientEmail, key, sa.TokenURI)
	}}, nil
}

// fetchServiceAccountToken trades a self-signed RS256 assertion for an
// access token (the OAuth JWT bearer grant).
func fetchServiceAccountToken(ctx context.Context, hc *http.Client, email string, key *rsa.PrivateKey, tokenURI string) (string, time.Time, error) {
	issued := time.Now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   email,
		"aud":   tokenURI,
		"scope": scope,
		"iat":   issued.Unix(),
		"exp":   issued.Add(time.Hour).Unix(),
	}).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token assertion: %w", err)
	}

	form := url.Values{"grant_type": {jwtBearerGrant}, "assertion": {assertion}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return readToken(hc, req, "token endpoint")
}

func fetchMetadataToken(ctx context.Context, hc *http.Client) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataTokenURL, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Metadata-Flavor", "Google")
	return readToken(hc, req, "metadata server")
}

func readToken(hc *http.Client, req *http.Request, source string) (string, time.Time, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", source, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("%s returned %s", source, resp.Status)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", time.Time{}, fmt.Errorf("%s: decoding grant: %w", source, err)
	}
	if grant.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%s: empty access token", source)
	}
	return grant.AccessToken, time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second), nil
}

// parsePrivateKey accepts PKCS#1 and PKCS#8 PEM blocks.
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemData))
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}
	return key, nil
}
