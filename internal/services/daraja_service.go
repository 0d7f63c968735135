package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"venus_app_echo/internal/config"
)

const (
	darajaTokenCacheKey   = "daraja:access_token"
	darajaTimestampLayout = "20060102150405"
	darajaOAuthTimeout    = 10 * time.Second
	darajaSTKTimeout      = 30 * time.Second
)

// STKRequest is what the payment flow needs the provider to charge
type STKRequest struct {
	Amount   float64
	Phone    string
	PlanName string
}

// STKResult carries the correlation id and the raw exchange for storage
type STKResult struct {
	CheckoutRequestID string
	Request           json.RawMessage
	Response          json.RawMessage
}

// DarajaClient talks to the Safaricom Daraja OAuth and STK push endpoints
type DarajaClient struct {
	cfg    config.DarajaConfig
	cache  *RedisCache
	client *http.Client
	now    func() time.Time
	loc    *time.Location
}

// NewDarajaClient creates a client. A nil cache fetches a token per push.
func NewDarajaClient(cfg config.DarajaConfig, cache *RedisCache) *DarajaClient {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown Daraja timezone, using UTC")
		loc = time.UTC
	}
	return &DarajaClient{
		cfg:    cfg,
		cache:  cache,
		client: &http.Client{},
		now:    time.Now,
		loc:    loc,
	}
}

// Configured reports whether every setting needed for a push is present
func (d *DarajaClient) Configured() bool {
	return d.cfg.ConsumerKey != "" && d.cfg.ConsumerSecret != "" &&
		d.cfg.CredentialsURL != "" && d.cfg.STKPushURL != "" &&
		d.cfg.ShortCode != "" && d.cfg.Passkey != ""
}

type darajaToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (d *DarajaClient) makeRequest(ctx context.Context, method, url string, header http.Header, payload interface{}) ([]byte, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return body, resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, resp.StatusCode, nil
}

// AccessToken returns a cached OAuth token or fetches a new one
func (d *DarajaClient) AccessToken(ctx context.Context) (string, error) {
	if d.cache != nil {
		var cached string
		err := d.cache.Get(ctx, darajaTokenCacheKey, &cached)
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Daraja token cache read failed")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, darajaOAuthTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(d.cfg.ConsumerKey+":"+d.cfg.ConsumerSecret)))

	body, _, err := d.makeRequest(ctx, http.MethodGet, d.cfg.CredentialsURL, header, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get Daraja access token: %w", err)
	}

	var token darajaToken
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to decode Daraja token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("access token not found in Daraja response")
	}

	if d.cache != nil {
		ttl := tokenTTL(token.ExpiresIn)
		if err := d.cache.Set(ctx, darajaTokenCacheKey, token.AccessToken, ttl); err != nil {
			log.Warn().Err(err).Msg("Daraja token cache write failed")
		}
	}

	log.Info().Msg("Obtained Daraja access token")
	return token.AccessToken, nil
}

// tokenTTL keeps a minute of headroom below the advertised lifetime
func tokenTTL(expiresIn string) time.Duration {
	secs := 0
	if _, err := fmt.Sscanf(expiresIn, "%d", &secs); err != nil || secs <= 120 {
		return time.Minute
	}
	return time.Duration(secs-60) * time.Second
}

// Password returns base64(shortcode + passkey + timestamp)
func (d *DarajaClient) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(d.cfg.ShortCode + d.cfg.Passkey + timestamp))
}

// InitiateSTK sends a CustomerPayBillOnline push to the customer's handset
func (d *DarajaClient) InitiateSTK(ctx context.Context, in STKRequest) (*STKResult, error) {
	if !d.Configured() {
		return nil, ErrProviderUnavailable
	}

	token, err := d.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	phone := NormalizeMSISDN(in.Phone)
	timestamp := d.now().In(d.loc).Format(darajaTimestampLayout)
	reqBody := map[string]interface{}{
		"BusinessShortCode": d.cfg.ShortCode,
		"Password":          d.Password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            int64(in.Amount),
		"PartyA":            phone,
		"PartyB":            d.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       d.cfg.CallbackURL,
		"AccountReference":  phone,
		"TransactionDesc":   "Venus " + in.PlanName,
	}

	ctx, cancel := context.WithTimeout(ctx, darajaSTKTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	body, status, err := d.makeRequest(ctx, http.MethodPost, d.cfg.STKPushURL, header, reqBody)
	if err != nil {
		if status == http.StatusUnauthorized && d.cache != nil {
			_ = d.cache.Delete(context.Background(), darajaTokenCacheKey)
		}
		return nil, fmt.Errorf("STK push failed: %w", err)
	}

	var parsed struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode STK response: %w", err)
	}

	rawReq, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	log.Info().Str("checkout_request_id", parsed.CheckoutRequestID).Msg("STK push initiated")
	return &STKResult{
		CheckoutRequestID: parsed.CheckoutRequestID,
		Request:           rawReq,
		Response:          json.RawMessage(body),
	}, nil
}

// NormalizeMSISDN converts local Kenyan numbers to the 2547XXXXXXXX form Daraja expects
func NormalizeMSISDN(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.TrimPrefix(phone, "+")

	if strings.HasPrefix(phone, "0") {
		phone = "254" + strings.TrimPrefix(phone, "0")
	}
	return phone
}
