package gcs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticTokenSource(token string) *tokenSource {
	return &tokenSource{
		fetch: func(context.Context) (string, time.Time, error) {
			return token, time.Now().Add(time.Hour), nil
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		http:       srv.Client(),
		tokens:     staticTokenSource("tok"),
		bucket:     "radar-photos",
		apiBase:    srv.URL,
		publicBase: "https://cdn.example.com",
		backoff:    time.Millisecond,
	}
}

func TestSaveUploadsObjectAndReturnsPublicURL(t *testing.T) {
	var gotPath, gotName, gotType, gotAuth, gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	ref, err := client.Save(context.Background(), "prices/abc.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "/upload/storage/v1/b/radar-photos/o", gotPath)
	assert.Equal(t, "prices/abc.jpg", gotName)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "jpeg-bytes", gotBody)
	assert.Equal(t, "https://cdn.example.com/radar-photos/prices/abc.jpg", ref)
}

func TestSaveSurfacesUploadFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})

	_, err := client.Save(context.Background(), "prices/abc.jpg", "image/jpeg", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSaveRetriesTransientFailures(t *testing.T) {
	attempts := 0
	var bodies []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Save(context.Background(), "prices/retry.jpg", "image/jpeg", strings.NewReader("same-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"same-bytes", "same-bytes", "same-bytes"}, bodies)
}

func TestSaveDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Save(context.Background(), "prices/bad.jpg", "image/jpeg", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestNewTokenSourceRejectsIncompleteServiceAccount(t *testing.T) {
	_, err := newTokenSource(http.DefaultClient, config.GCPConfig{CredentialsJSON: `{"client_email":"a@b"}`})
	assert.Error(t, err)

	ts, err := newTokenSource(http.DefaultClient, config.GCPConfig{})
	require.NoError(t, err)
	assert.NotNil(t, ts)
}

func TestDeleteTreatsMissingObjectAsDone(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Delete(context.Background(), "https://cdn.example.com/radar-photos/prices/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/storage/v1/b/radar-photos/o/prices%2Fabc.jpg", gotPath)
}

func TestDeleteRejectsForeignReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	assert.Error(t, client.Delete(context.Background(), "https://elsewhere.example.com/x.jpg"))
}

func TestPingChecksBucketListing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/b/radar-photos/o", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, client.Ping(context.Background()))
}

func TestTokenSourceCachesUntilNearExpiry(t *testing.T) {
	calls := 0
	ts := &tokenSource{
		fetch: func(context.Context) (string, time.Time, error) {
			calls++
			return "tok", time.Now().Add(time.Hour), nil
		},
	}
	for i := 0; i < 3; i++ {
		token, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", token)
	}
	assert.Equal(t, 1, calls)
}

func TestParsePrivateKeyAcceptsPKCS8AndPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	_, err = parsePrivateKey(string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})))
	require.NoError(t, err)

	pkcs1 := x509.MarshalPKCS1PrivateKey(key)
	_, err = parsePrivateKey(string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: pkcs1})))
	require.NoError(t, err)

	_, err = parsePrivateKey("garbage")
	assert.Error(t, err)
}

func TestServiceAccountTokenSignsAssertion(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var assertion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assertion = r.PostForm.Get("assertion")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"sa-token","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)

	token, expiry, err := fetchServiceAccountToken(context.Background(), srv.Client(), "radar@project.iam", key, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "sa-token", token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)

	parsed, err := jwt.Parse(assertion, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "radar@project.iam", claims["iss"])
	assert.Equal(t, scope, claims["scope"])
}
