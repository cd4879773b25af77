package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// DefaultCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const DefaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	maxUIDLength     = 128
	defaultCertsTTL  = time.Hour
	minRefreshPeriod = time.Minute
)

var (
	ErrUnknownKey = errors.New("token signed by unknown key")
	ErrBadSubject = errors.New("token has invalid subject")
	ErrAuthTime   = errors.New("token auth_time is in the future")
)

type firebaseClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	PhoneNumber   string `json:"phone_number"`
	AuthTime      int64  `json:"auth_time"`
}

// FirebaseVerifier validates Firebase ID tokens without the Admin SDK:
// RS256 signatures against Google's published certificates, plus the
// issuer, audience and time claims for the configured project.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client
	now       func() time.Time

	// refetch bounds how often an unknown kid can force a certificate
	// download while the cache is still fresh.
	refetch *rate.Limiter

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

type FirebaseOption func(*FirebaseVerifier)

func WithCertsURL(u string) FirebaseOption {
	return func(v *FirebaseVerifier) { v.certsURL = u }
}

func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(v *FirebaseVerifier) { v.client = c }
}

func WithClock(now func() time.Time) FirebaseOption {
	return func(v *FirebaseVerifier) { v.now = now }
}

func NewFirebaseVerifier(projectID string, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{
		projectID: projectID,
		certsURL:  DefaultCertsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
		refetch:   rate.NewLimiter(rate.Every(minRefreshPeriod), 1),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	claims := &firebaseClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, err
	}

	if claims.Subject == "" || len(claims.Subject) > maxUIDLength {
		return nil, ErrBadSubject
	}
	if claims.AuthTime > v.now().Add(jwt.TimePrecision).Unix() {
		return nil, ErrAuthTime
	}

	return &Claims{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		DisplayName:   claims.Name,
		PhoneNumber:   claims.PhoneNumber,
	}, nil
}

func (v *FirebaseVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, ErrUnknownKey
	}

	v.mu.RLock()
	k, ok := v.keys[kid]
	fresh := v.now().Before(v.expires)
	v.mu.RUnlock()

	if ok && fresh {
		return k, nil
	}
	// Unknown kid with a fresh cache usually means a forged header.
	if fresh && !v.refetch.AllowN(v.now(), 1) {
		return nil, ErrUnknownKey
	}
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

func (v *FirebaseVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certificates: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("decode signing certificates: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("parse certificate %s: %w", kid, err)
		}
		keys[kid] = k
	}

	now := v.now()
	// A scheduled refresh counts against the same budget.
	v.refetch.AllowN(now, 1)
	v.mu.Lock()
	v.keys = keys
	v.expires = now.Add(maxAge(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()
	return nil
}

// maxAge reads max-age from a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, part := range strings.Split(header, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultCertsTTL
}
