package push

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

// No WebPush/VAPID client exists anywhere in the retrieval pack, so this
// adapter signs its own VAPID JWT (golang-jwt, already a dependency for the
// HTTP auth gate) and encrypts the payload by hand per RFC 8291
// (aes128gcm), using only crypto/ecdsa, crypto/ecdh and crypto/aes from the
// standard library.
const vapidTokenTTL = 12 * time.Hour

// WebPushConfig configures the browser push adapter.
type WebPushConfig struct {
	VAPIDPrivateKey *ecdsa.PrivateKey
	Subscriber      string // "mailto:ops@example.com"
}

// WebPushAdapter sends pushes to browser subscriptions via the Web Push
// protocol. Payload.Token carries the subscription endpoint URL; the
// subscription's p256dh/auth keys travel in Payload.Data under reserved
// keys set by the caller (see SubscriptionKeys).
type WebPushAdapter struct {
	privateKey *ecdsa.PrivateKey
	publicKey  []byte
	subscriber string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	budget     *retrybudget.Budget
	quota      *quota.Tracker

	mu        sync.Mutex
	cachedJWT map[string]cachedVAPIDToken
}

type cachedVAPIDToken struct {
	token   string
	expires time.Time
}

// SubscriptionKeys are the p256dh/auth values a browser push subscription
// carries. The caller puts them on Payload.Data under "__p256dh" and
// "__auth", and Send reads them from there.
type SubscriptionKeys struct {
	P256dh string
	Auth   string
}

func NewWebPushAdapter(cfg WebPushConfig, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) *WebPushAdapter {
	pub := elliptic.Marshal(elliptic.P256(), cfg.VAPIDPrivateKey.X, cfg.VAPIDPrivateKey.Y) //nolint:staticcheck
	return &WebPushAdapter{
		privateKey: cfg.VAPIDPrivateKey,
		publicKey:  pub,
		subscriber: cfg.Subscriber,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breakers.Get("webpush"),
		budget:     budget,
		quota:      qt,
		cachedJWT:  make(map[string]cachedVAPIDToken),
	}
}

func (a *WebPushAdapter) Name() string { return "webpush" }

func (a *WebPushAdapter) vapidAuth(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse push endpoint: %w", err)
	}
	aud := u.Scheme + "://" + u.Host

	a.mu.Lock()
	if cached, ok := a.cachedJWT[aud]; ok && time.Now().Before(cached.expires) {
		a.mu.Unlock()
		return cached.token, nil
	}
	a.mu.Unlock()

	now := time.Now()
	expiry := now.Add(vapidTokenTTL)
	claims := jwt.MapClaims{
		"aud": aud,
		"exp": expiry.Unix(),
		"sub": a.subscriber,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := tok.SignedString(a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign vapid jwt: %w", err)
	}

	header := "vapid t=" + signed + ", k=" + base64.RawURLEncoding.EncodeToString(a.publicKey)

	a.mu.Lock()
	a.cachedJWT[aud] = cachedVAPIDToken{token: header, expires: expiry.Add(-5 * time.Minute)}
	a.mu.Unlock()
	return header, nil
}

func (a *WebPushAdapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	allowed, err := a.quota.Reserve("webpush")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelPush, Provider: "webpush", Status: domain.DeliveryStatusFailed}, err
	}

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		authHeader, authErr := a.vapidAuth(p.Token)
		if authErr != nil {
			return apperrors.NewServiceUnavailableError("webpush", authErr)
		}

		plaintext, marshalErr := json.Marshal(map[string]interface{}{
			"title": p.Title, "body": p.Body, "data": p.Data, "image": p.ImageURL,
		})
		if marshalErr != nil {
			return apperrors.New("validation", "INVALID_PAYLOAD", marshalErr.Error(), false)
		}

		p256dh, auth := p.Data["__p256dh"], p.Data["__auth"]
		encrypted, ttl, encErr := encryptAES128GCM(plaintext, p256dh, auth)
		if encErr != nil {
			return apperrors.New("validation", "INVALID_SUBSCRIPTION", encErr.Error(), false)
		}
		_ = ttl

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.Token, bytes.NewReader(encrypted))
		if reqErr != nil {
			return apperrors.NewServiceUnavailableError("webpush", reqErr)
		}
		req.Header.Set("Authorization", authHeader)
		req.Header.Set("Content-Encoding", "aes128gcm")
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("TTL", strconv.Itoa(maxInt(p.TTLSeconds, 0)))

		resp, doErr := a.httpClient.Do(req)
		if doErr != nil {
			return apperrors.NewServiceUnavailableError("webpush", doErr)
		}
		defer func() { _ = resp.Body.Close() }()
		io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
			outcome = domain.DeliveryOutcome{Channel: domain.ChannelPush, Provider: "webpush", Status: domain.DeliveryStatusDelivered, LatencyMS: time.Since(start).Milliseconds()}
			return nil
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			return apperrors.NewTokenInvalidError("push subscription expired")
		case resp.StatusCode == http.StatusTooManyRequests:
			return apperrors.NewRateLimitedError(time.Second)
		case resp.StatusCode >= 500:
			return apperrors.NewServiceUnavailableError("webpush", fmt.Errorf("status %d", resp.StatusCode))
		default:
			return apperrors.New("validation", "WEBPUSH_REJECTED", fmt.Sprintf("status %d", resp.StatusCode), false)
		}
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelPush, Provider: "webpush", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

// encryptAES128GCM implements the RFC 8291 message encryption scheme:
// derive a shared secret via ECDH with an ephemeral key, HKDF-expand the
// content-encryption and nonce keys, and seal one AES-128-GCM record.
func encryptAES128GCM(plaintext []byte, p256dhB64, authB64 string) ([]byte, int, error) {
	clientPub, err := base64.RawURLEncoding.DecodeString(p256dhB64)
	if err != nil || len(clientPub) == 0 {
		return nil, 0, fmt.Errorf("invalid p256dh key")
	}
	authSecret, err := base64.RawURLEncoding.DecodeString(authB64)
	if err != nil || len(authSecret) == 0 {
		return nil, 0, fmt.Errorf("invalid auth secret")
	}

	curve := ecdh.P256()
	clientKey, err := curve.NewPublicKey(clientPub)
	if err != nil {
		return nil, 0, fmt.Errorf("parse client public key: %w", err)
	}
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, 0, fmt.Errorf("generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(clientKey)
	if err != nil {
		return nil, 0, fmt.Errorf("ecdh: %w", err)
	}

	prk, err := hkdf.Extract(sha256.New, shared, authSecret)
	if err != nil {
		return nil, 0, err
	}
	keyInfo := append([]byte("WebPush: info\x00"), clientPub...)
	keyInfo = append(keyInfo, ephemeral.PublicKey().Bytes()...)
	ikm, err := hkdf.Expand(sha256.New, prk, string(keyInfo), 32)
	if err != nil {
		return nil, 0, err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, 0, err
	}
	cekPrk, err := hkdf.Extract(sha256.New, ikm, salt)
	if err != nil {
		return nil, 0, err
	}
	cek, err := hkdf.Expand(sha256.New, cekPrk, "Content-Encoding: aes128gcm\x00", 16)
	if err != nil {
		return nil, 0, err
	}
	nonce, err := hkdf.Expand(sha256.New, cekPrk, "Content-Encoding: nonce\x00", 12)
	if err != nil {
		return nil, 0, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, 0, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, 0, err
	}

	padded := append(plaintext, 0x02) // delimiter octet, no additional padding
	sealed := gcm.Seal(nil, nonce, padded, nil)

	header := new(bytes.Buffer)
	header.Write(salt)
	binary.Write(header, binary.BigEndian, uint32(4096))
	keyBytes := ephemeral.PublicKey().Bytes()
	header.WriteByte(byte(len(keyBytes)))
	header.Write(keyBytes)

	return append(header.Bytes(), sealed...), 4096, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (a *WebPushAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("webpush")
	return monitoring.ProviderHealth{Status: status, Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining)}
}
