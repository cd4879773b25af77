package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const project = "empower-test"

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type certServer struct {
	*httptest.Server
	key    *rsa.PrivateKey
	hits   atomic.Int32
	maxAge string
}

func newCertServer(t *testing.T) *certServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken.system.gserviceaccount.com"},
		NotBefore:    fixedNow.Add(-time.Hour),
		NotAfter:     fixedNow.Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	cs := &certServer{key: key, maxAge: "public, max-age=19000, must-revalidate"}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Cache-Control", cs.maxAge)
		_ = json.NewEncoder(w).Encode(map[string]string{"kid-1": certPEM})
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *certServer) verifier() *FirebaseVerifier {
	return NewFirebaseVerifier(project,
		WithCertsURL(cs.URL),
		WithClock(func() time.Time { return fixedNow }))
}

func validClaims() firebaseClaims {
	return firebaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/" + project,
			Audience:  jwt.ClaimStrings{project},
			Subject:   "uid-123",
			IssuedAt:  jwt.NewNumericDate(fixedNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
		Email:         "ana@example.com",
		EmailVerified: true,
		Name:          "Ana",
		AuthTime:      fixedNow.Add(-time.Minute).Unix(),
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims firebaseClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerifyValidToken(t *testing.T) {
	cs := newCertServer(t)
	v := cs.verifier()

	claims, err := v.Verify(context.Background(), sign(t, cs.key, "kid-1", validClaims()))
	require.NoError(t, err)

	assert.Equal(t, &Claims{
		UID:           "uid-123",
		Email:         "ana@example.com",
		EmailVerified: true,
		DisplayName:   "Ana",
	}, claims)
}

func TestVerifyCachesCertificates(t *testing.T) {
	cs := newCertServer(t)
	v := cs.verifier()
	tok := sign(t, cs.key, "kid-1", validClaims())

	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), tok)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), cs.hits.Load())
}

func TestVerifyRejects(t *testing.T) {
	cs := newCertServer(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{"garbage", func() string { return "not.a.jwt" }},
		{"expired", func() string {
			c := validClaims()
			c.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-time.Second))
			return sign(t, cs.key, "kid-1", c)
		}},
		{"wrong audience", func() string {
			c := validClaims()
			c.Audience = jwt.ClaimStrings{"another-project"}
			return sign(t, cs.key, "kid-1", c)
		}},
		{"wrong issuer", func() string {
			c := validClaims()
			c.Issuer = "https://accounts.example.com"
			return sign(t, cs.key, "kid-1", c)
		}},
		{"issued in the future", func() string {
			c := validClaims()
			c.IssuedAt = jwt.NewNumericDate(fixedNow.Add(time.Hour))
			return sign(t, cs.key, "kid-1", c)
		}},
		{"empty subject", func() string {
			c := validClaims()
			c.Subject = ""
			return sign(t, cs.key, "kid-1", c)
		}},
		{"oversized subject", func() string {
			c := validClaims()
			c.Subject = strings.Repeat("x", 129)
			return sign(t, cs.key, "kid-1", c)
		}},
		{"auth time in the future", func() string {
			c := validClaims()
			c.AuthTime = fixedNow.Add(time.Hour).Unix()
			return sign(t, cs.key, "kid-1", c)
		}},
		{"unknown kid", func() string { return sign(t, cs.key, "kid-9", validClaims()) }},
		{"signed by another key", func() string { return sign(t, otherKey, "kid-1", validClaims()) }},
		{"hs256", func() string {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
			tok.Header["kid"] = "kid-1"
			s, err := tok.SignedString([]byte("secret"))
			require.NoError(t, err)
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cs.verifier().Verify(context.Background(), tt.token())
			assert.Error(t, err)
		})
	}
}

func TestUnknownKidRefetchIsThrottled(t *testing.T) {
	cs := newCertServer(t)
	now := fixedNow
	v := NewFirebaseVerifier(project, WithCertsURL(cs.URL), WithClock(func() time.Time { return now }))

	_, err := v.Verify(context.Background(), sign(t, cs.key, "kid-1", validClaims()))
	require.NoError(t, err)
	require.Equal(t, int32(1), cs.hits.Load())

	forged := sign(t, cs.key, "kid-9", validClaims())
	for i := 0; i < 5; i++ {
		_, err = v.Verify(context.Background(), forged)
		assert.ErrorIs(t, err, ErrUnknownKey)
	}
	assert.Equal(t, int32(1), cs.hits.Load())

	now = now.Add(minRefreshPeriod)
	_, err = v.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(2), cs.hits.Load())
}

func TestVerifyCertEndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	cs := newCertServer(t)

	v := NewFirebaseVerifier(project, WithCertsURL(srv.URL), WithClock(func() time.Time { return fixedNow }))
	_, err := v.Verify(context.Background(), sign(t, cs.key, "kid-1", validClaims()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 19000*time.Second, maxAge("public, max-age=19000, must-revalidate"))
	assert.Equal(t, defaultCertsTTL, maxAge("no-cache"))
	assert.Equal(t, defaultCertsTTL, maxAge("max-age=abc"))
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"", "", false},
		{"Basic abc", "", false},
		{"bearer abc", "", false},
		{"Bearer ", "", false},
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
	}
	for _, tt := range tests {
		token, ok := ExtractBearer(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", UIDFrom(ctx))

	ctx = WithClaims(ctx, &Claims{UID: "u1"})
	c, ok := ClaimsFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", c.UID)
	assert.Equal(t, "u1", UIDFrom(ctx))
}
