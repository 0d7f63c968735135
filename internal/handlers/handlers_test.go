package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"venus_app_echo/internal/config"
	"venus_app_echo/internal/middleware"
	"venus_app_echo/internal/models"
	"venus_app_echo/internal/services"
	"venus_app_echo/internal/testutil"
)

type stubInitiator struct {
	checkout string
	err      error
}

func (s *stubInitiator) InitiateSTK(ctx context.Context, in services.STKRequest) (*services.STKResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.STKResult{
		CheckoutRequestID: s.checkout,
		Request:           json.RawMessage(`{"BusinessShortCode":"174379"}`),
		Response:          json.RawMessage(`{"ResponseCode":"0"}`),
	}, nil
}

type stubUploader struct {
	keys []string
}

func (s *stubUploader) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.keys = append(s.keys, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

type testServer struct {
	e         *echo.Echo
	db        *gorm.DB
	initiator *stubInitiator
	uploader  *stubUploader
}

func newTestServer(t *testing.T, limits RateLimits) *testServer {
	t.Helper()

	db := testutil.NewDB(t, services.AllModels()...)
	s := &testServer{
		db:        db,
		initiator: &stubInitiator{checkout: "ws_CO_191220191020363925"},
		uploader:  &stubUploader{},
	}

	users := services.NewUserService(db, "test-secret", time.Hour)
	awsCfg := config.AWSConfig{Region: "eu-west-1", Bucket: "venus-photos", MaxPhotoSizeMB: 1}

	e := echo.New()
	e.HTTPErrorHandler = middleware.JSONErrorHandler
	RegisterRoutes(e, Handlers{
		Auth:     NewAuthHandler(users),
		Users:    NewUserHandler(users),
		Profiles: NewProfileHandler(services.NewProfileService(db)),
		Matches:  NewMatchHandler(services.NewMatchService(db, nil, nil)),
		Plans:    NewPlanHandler(services.NewPlanService(db, nil)),
		Payments: NewPaymentHandler(services.NewPaymentService(db, s.initiator, nil, nil)),
		Photos:   NewPhotoHandler(services.NewPhotoService(db, s.uploader, awsCfg), awsCfg.MaxPhotoSizeMB),
	}, users, limits)
	s.e = e
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// signup registers and logs in, returning the token and user id
func (s *testServer) signup(t *testing.T, email string) (string, string) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": email, "first_name": "Amani", "last_name": "Wanjiru", "password": "s3cret!",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": "s3cret!"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	return login["access_token"].(string), login["user_id"].(string)
}

func (s *testServer) completeProfile(t *testing.T, token, phone string, gender models.Gender) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/profile/complete", map[string]string{
		"phone_number": phone, "gender": string(gender), "date_of_birth": "1995-05-20", "bio": "hello",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["profile_id"].(string)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	d, _ := decode(t, rec)["detail"].(string)
	return d
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := s.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", decode(t, rec)["status"])
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, userID := s.signup(t, "amani@venus.test")

	t.Run("duplicate email", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
			"email": "AMANI@venus.test", "first_name": "A", "last_name": "W", "password": "x",
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email already registered", detail(t, rec))
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": "x@venus.test"}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "amani@venus.test", "password": "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect email or password", detail(t, rec))
	})

	t.Run("login without profile", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "amani@venus.test", "password": "s3cret!"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "bearer", body["token_type"])
		assert.Equal(t, "Amani", body["first_name"])
		assert.Nil(t, body["profile"])
	})

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/users/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Could not validate credentials", detail(t, rec))
	})

	t.Run("me", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, userID, body["user_id"])
		assert.NotContains(t, body, "hashed_password")
	})

	t.Run("update me", func(t *testing.T) {
		rec := s.do(t, http.MethodPatch, "/api/v1/users/me", map[string]string{"fcm_token": "device-1", "avatar_url": "https://cdn/a.png"}, token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://cdn/a.png", decode(t, rec)["avatar_url"])

		var stored models.User
		require.NoError(t, s.db.First(&stored, "user_id = ?", userID).Error)
		assert.Equal(t, "device-1", stored.PushToken())
	})

	t.Run("complete profile and phone conflict", func(t *testing.T) {
		s.completeProfile(t, token, "+254700000001", models.GenderFemale)

		rec := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "amani@venus.test", "password": "s3cret!"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		profile := decode(t, rec)["profile"].(map[string]interface{})
		assert.Equal(t, "FEMALE", profile["gender"])

		other, _ := s.signup(t, "baraka@venus.test")
		rec = s.do(t, http.MethodPost, "/api/v1/auth/profile/complete", map[string]string{
			"phone_number": "+254700000001", "gender": "MALE", "date_of_birth": "1990-01-01", "bio": "",
		}, other)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Phone number already registered", detail(t, rec))
	})

	t.Run("invalid gender", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/auth/profile/complete", map[string]string{
			"phone_number": "+254700000009", "gender": "OTHER", "date_of_birth": "1990-01-01",
		}, token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestInactiveUser(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, userID := s.signup(t, "gone@venus.test")

	require.NoError(t, s.db.Model(&models.User{}).Where("user_id = ?", userID).Update("active", false).Error)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "gone@venus.test", "password": "s3cret!"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Inactive user", detail(t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Inactive user", detail(t, rec))
}

func TestProfileLocationAndMap(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	maleToken, _ := s.signup(t, "otieno@venus.test")
	femaleToken, femaleID := s.signup(t, "njeri@venus.test")

	maleProfile := s.completeProfile(t, maleToken, "+254711000001", models.GenderMale)
	femaleProfile := s.completeProfile(t, femaleToken, "+254711000002", models.GenderFemale)

	t.Run("map is empty without coordinates", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/profiles/map", nil, maleToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode(t, rec)["map_profiles"])
	})

	rec := s.do(t, http.MethodPost, "/api/v1/profiles/location", map[string]string{"profile_id": maleProfile, "coordinates": "-1.2921,36.8219"}, maleToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "location_updated", decode(t, rec)["message"])

	rec = s.do(t, http.MethodPost, "/api/v1/profiles/location", map[string]string{"profile_id": femaleProfile, "coordinates": "-1.2922,36.8220"}, femaleToken)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("map shape", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/profiles/map", nil, maleToken)
		require.Equal(t, http.StatusOK, rec.Code)

		list := decode(t, rec)["map_profiles"].([]interface{})
		require.Len(t, list, 1)
		item := list[0].(map[string]interface{})
		assert.Equal(t, femaleID, item["user_id"])
		assert.Contains(t, item, "avatar_url")

		profile := item["profile"].(map[string]interface{})
		assert.Equal(t, femaleProfile, profile["profile_id"])
		assert.Equal(t, "FEMALE", profile["gender"])
		assert.Equal(t, true, profile["online"])
		assert.Equal(t, "-1.2922,36.8220", profile["current_coordinates"])
		assert.NotContains(t, profile, "phone_number")
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/profiles/location", map[string]string{"profile_id": maleProfile, "coordinates": "91,0"}, maleToken)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("someone else's profile", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/profiles/location", map[string]string{"profile_id": femaleProfile, "coordinates": "0,0"}, maleToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown profile", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/profiles/location", map[string]string{"profile_id": "6f1c1f0e-8d7a-4a52-9a51-1b2a3c4d5e6f", "coordinates": "0,0"}, maleToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Profile not found", detail(t, rec))
	})
}

func TestMatchUpsertEndpoint(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, me := s.signup(t, "me@venus.test")
	_, partner := s.signup(t, "partner@venus.test")
	thread := "2b0c7c1e-6a0e-4f5e-8f7e-1e2d3c4b5a69"

	body := map[string]interface{}{"my_id": me, "partner_id": partner, "thread_id": thread}
	rec := s.do(t, http.MethodPost, "/api/v1/matches", body, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode(t, rec)

	body["last_message"] = "habari"
	body["sent_by"] = me
	rec = s.do(t, http.MethodPost, "/api/v1/matches", body, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode(t, rec)
	assert.Equal(t, first["match_id"], second["match_id"])
	assert.Equal(t, "habari", second["last_message"])

	body["my_id"] = partner
	rec = s.do(t, http.MethodPost, "/api/v1/matches", body, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/matches", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func stkCallback(checkout string, resultCode int, amount float64) map[string]interface{} {
	return map[string]interface{}{
		"Body": map[string]interface{}{
			"stkCallback": map[string]interface{}{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": checkout,
				"ResultCode":        resultCode,
				"ResultDesc":        "The service request is processed successfully.",
				"CallbackMetadata": map[string]interface{}{
					"Item": []map[string]interface{}{
						{"Name": "Amount", "Value": amount},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
					},
				},
			},
		},
	}
}

func TestPaymentEndpoints(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, _ := s.signup(t, "payer@venus.test")
	otherToken, _ := s.signup(t, "other@venus.test")

	rec := s.do(t, http.MethodPost, "/api/v1/payment-plans", map[string]interface{}{"plan": "MONTHLY", "amount": 500, "months": 1}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	planID := decode(t, rec)["plan_id"].(string)

	rec = s.do(t, http.MethodGet, "/api/v1/payment-plans", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 1)

	t.Run("invalid plan", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{"plan_id": "6f1c1f0e-8d7a-4a52-9a51-1b2a3c4d5e6f", "amount": 500}, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid plan_id or plan is not active", detail(t, rec))
	})

	t.Run("initiate without phone", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/initiate-stk", map[string]interface{}{"plan_id": planID, "amount": 500}, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = s.do(t, http.MethodPost, "/api/v1/payments/initiate-stk", map[string]interface{}{
		"plan_id": planID, "amount": 500, "phone_number": "0712345678",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decode(t, rec)
	paymentID := payment["payment_id"].(string)
	assert.Equal(t, s.initiator.checkout, payment["mpesa_transaction_id"])

	t.Run("owner only", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/payments/"+paymentID, nil, otherToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Payment not found", detail(t, rec))

		rec = s.do(t, http.MethodGet, "/api/v1/payments/not-a-uuid", nil, token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("declined callback", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/callback", stkCallback(s.initiator.checkout, 1032, 0), "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "received", body["status"])
		assert.EqualValues(t, 1032, body["result_code"])
	})

	t.Run("callback without Body", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/callback", map[string]string{}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "received", body["status"])
		assert.Nil(t, body["result_code"])
	})

	t.Run("callback missing correlation id", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/callback", stkCallback("", 0, 500), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "CheckoutRequestID not found", decode(t, rec)["message"])
	})

	t.Run("callback unknown payment", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/callback", stkCallback("ws_CO_unknown", 0, 500), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "Payment not found", body["message"])
	})

	t.Run("callback with broken json", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/callback", []byte(`{"Body":`), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("successful callback", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/payments/callback", stkCallback(s.initiator.checkout, 0, 500), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, paymentID, body["payment_id"])

		rec = s.do(t, http.MethodGet, "/api/v1/payments/"+paymentID, nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		stored := decode(t, rec)
		assert.Equal(t, models.TransactionStatusSuccessful, stored["transaction_status"])
		assert.Equal(t, "NLJ7RT61SV", stored["payment_ref"])
	})

	t.Run("every delivery is logged", func(t *testing.T) {
		var count int64
		require.NoError(t, s.db.Model(&models.PaymentCallbackHistory{}).Count(&count).Error)
		assert.Equal(t, int64(5), count)
	})

	t.Run("patch", func(t *testing.T) {
		rec := s.do(t, http.MethodPatch, "/api/v1/payments/"+paymentID, map[string]interface{}{"payment_ref": "MANUAL-1"}, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "MANUAL-1", decode(t, rec)["payment_ref"])

		rec = s.do(t, http.MethodPatch, "/api/v1/payments/"+paymentID, map[string]interface{}{"payment_ref": "x"}, otherToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/payments", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1)
	})

	t.Run("stk failure keeps the row", func(t *testing.T) {
		s.initiator.err = errors.New("daraja timeout")
		defer func() { s.initiator.err = nil }()

		rec := s.do(t, http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"plan_id": planID, "amount": 500, "phone_number": "0712345678",
		}, otherToken)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Nil(t, decode(t, rec)["mpesa_transaction_id"])
	})
}

func TestCallbackLooseResultCodes(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, _ := s.signup(t, "loose@venus.test")

	rec := s.do(t, http.MethodPost, "/api/v1/payment-plans", map[string]interface{}{"plan": "MONTHLY", "amount": 500, "months": 1}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	planID := decode(t, rec)["plan_id"].(string)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/initiate-stk", map[string]interface{}{
		"plan_id": planID, "amount": 500, "phone_number": "0712345678",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paymentID := decode(t, rec)["payment_id"].(string)

	rec = s.do(t, http.MethodPost, "/api/v1/payments/callback",
		[]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"`+s.initiator.checkout+`","ResultCode":"1032"}}}`), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "1032", body["result_code"])

	rec = s.do(t, http.MethodPost, "/api/v1/payments/callback",
		[]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"`+s.initiator.checkout+`","ResultCode":0.0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":500},{"Name":"MpesaReceiptNumber","Value":"QK41X"}]}}}}`), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, paymentID, body["payment_id"])

	var history []models.PaymentCallbackHistory
	require.NoError(t, s.db.Order("id").Find(&history).Error)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].ResultCode)
	assert.Equal(t, 1032, *history[0].ResultCode)
	assert.Equal(t, "declined", history[0].Outcome)
	require.NotNil(t, history[1].ResultCode)
	assert.Equal(t, 0, *history[1].ResultCode)
}

func TestPlanActiveToggle(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, userID := s.signup(t, "admin@venus.test")

	rec := s.do(t, http.MethodPost, "/api/v1/payment-plans", map[string]interface{}{"plan": "VIP", "amount": 900, "months": 1}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	planID := decode(t, rec)["plan_id"].(string)

	rec = s.do(t, http.MethodPatch, "/api/v1/payment-plans/"+planID, map[string]interface{}{"active": false}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/payment-plans/"+planID, map[string]interface{}{}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "active is required", detail(t, rec))

	rec = s.do(t, http.MethodPatch, "/api/v1/payment-plans/not-a-uuid", map[string]interface{}{"active": false}, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/payment-plans/6f1c1f0e-8d7a-4a52-9a51-1b2a3c4d5e6f", map[string]interface{}{"active": false}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/payment-plans/"+planID, map[string]interface{}{"active": false}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, false, body["active"])
	assert.Equal(t, userID, body["updated_by"])

	rec = s.do(t, http.MethodGet, "/api/v1/payment-plans", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	assert.Empty(t, plans)
}

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestPhotoEndpoints(t *testing.T) {
	s := newTestServer(t, RateLimits{})
	token, userID := s.signup(t, "photo@venus.test")

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		body, contentType := multipartImage(t, filename, content)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/photos", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("me.png", []byte("\x89PNG"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	photo := decode(t, rec)
	assert.Equal(t, false, photo["verified"])
	require.Len(t, s.uploader.keys, 1)
	assert.Equal(t, "users/"+userID+"/photos/"+photo["photo_id"].(string)+".png", s.uploader.keys[0])

	rec = upload("resume.pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "File type not allowed")

	rec = upload("noext", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File must have an extension", detail(t, rec))

	rec = upload("huge.jpg", bytes.Repeat([]byte("a"), 1024*1024+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File size exceeds maximum allowed size of 1MB", detail(t, rec))

	rec = upload("massive.jpg", bytes.Repeat([]byte("a"), 3*1024*1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Len(t, s.uploader.keys, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/photos", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, RateLimits{Login: 1})

	creds := map[string]string{"email": "nobody@venus.test", "password": "x"}
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", creds, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", creds, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", detail(t, rec))
}
