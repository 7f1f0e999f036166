package messaging

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/grooming-booking/internal/messaging/telnyxclient"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func TestRecipientAttrHidesNumber(t *testing.T) {
	attr := recipientAttr("+255712345678")
	assert.Equal(t, "grooming.to_hash", string(attr.Key))
	value := attr.Value.AsString()
	assert.Len(t, value, 16)
	assert.NotContains(t, value, "712345678")
	assert.Equal(t, value, recipientAttr("+255712345678").Value.AsString())
	assert.NotEqual(t, value, recipientAttr("+255712345679").Value.AsString())
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+255 712 345 678":  "+255712345678",
		"255712345678":      "+255712345678",
		" (255) 712-345678": "+255712345678",
		"0712 345 678":      "+255712345678",
		"00255712345678":    "+255712345678",
		"+44 20 7946 0958":  "+442079460958",
		"":                  "",
		"n/a":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestUltraMsgSenderPostsForm(t *testing.T) {
	var gotPath string
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.NoError(t, r.ParseForm())
		form = map[string]string{
			"token": r.PostForm.Get("token"),
			"to":    r.PostForm.Get("to"),
			"body":  r.PostForm.Get("body"),
		}
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sent":"true","message":"ok","id":101}`))
	}))
	defer srv.Close()

	sender, err := NewUltraMsgSender(UltraMsgConfig{BaseURL: srv.URL + "/", InstanceID: "instance42", Token: "tok"}, testLogger())
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), "255 712 345 678", "Booking confirmed"))
	assert.Equal(t, "/instance42/messages/chat", gotPath)
	assert.Equal(t, map[string]string{"token": "tok", "to": "+255712345678", "body": "Booking confirmed"}, form)
}

func TestUltraMsgSenderErrors(t *testing.T) {
	_, err := NewUltraMsgSender(UltraMsgConfig{InstanceID: "x"}, nil)
	assert.Error(t, err)

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"http status", http.StatusUnauthorized, `{"error":"Wrong token"}`},
		{"error field", http.StatusOK, `{"error":[{"to":"invalid number"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			sender, err := NewUltraMsgSender(UltraMsgConfig{BaseURL: srv.URL, InstanceID: "i", Token: "t"}, testLogger())
			require.NoError(t, err)
			assert.Error(t, sender.Send(context.Background(), "+255712345678", "hi"))
		})
	}

	sender, err := NewUltraMsgSender(UltraMsgConfig{InstanceID: "i", Token: "t"}, testLogger())
	require.NoError(t, err)
	assert.Error(t, sender.Send(context.Background(), "", "hi"))
	assert.Error(t, sender.Send(context.Background(), "+255712345678", "  "))
}

type fakeTelnyx struct {
	requests []telnyxclient.SendMessageRequest
	err      error
}

func (f *fakeTelnyx) SendMessage(_ context.Context, req telnyxclient.SendMessageRequest) (*telnyxclient.MessageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &telnyxclient.MessageResponse{ID: "msg-1", Status: "queued"}, nil
}

func TestTelnyxSenderNormalizesNumbers(t *testing.T) {
	client := &fakeTelnyx{}
	sender := NewTelnyxSender(client, "255 700 000 001", "profile-1", testLogger())

	require.NoError(t, sender.Send(context.Background(), "0712-345-678", "hello"))
	require.Len(t, client.requests, 1)
	assert.Equal(t, telnyxclient.SendMessageRequest{
		From:               "+255700000001",
		To:                 "+255712345678",
		Body:               "hello",
		MessagingProfileID: "profile-1",
	}, client.requests[0])

	client.err = errors.New("telnyx down")
	assert.EqualError(t, sender.Send(context.Background(), "+255712345678", "hello"), "telnyx down")
}

type recordingSender struct {
	calls int
	err   error
}

func (r *recordingSender) Send(context.Context, string, string) error {
	r.calls++
	return r.err
}

func TestFailoverSender(t *testing.T) {
	primary := &recordingSender{}
	secondary := &recordingSender{}
	f := NewFailoverSender(testLogger(),
		Route{Name: ProviderUltraMsg, Sender: primary},
		Route{Name: "unused"},
		Route{Name: ProviderTelnyx, Sender: secondary},
	)

	require.NoError(t, f.Send(context.Background(), "+1", "hi"))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)

	primary.err = errors.New("whatsapp down")
	require.NoError(t, f.Send(context.Background(), "+1", "hi"))
	assert.Equal(t, 1, secondary.calls)

	secondary.err = errors.New("sms down")
	err := f.Send(context.Background(), "+1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, primary.err)
	assert.ErrorIs(t, err, secondary.err)
	assert.Contains(t, err.Error(), "ultramsg: whatsapp down")
	assert.Contains(t, err.Error(), "telnyx: sms down")

	var nilSender *FailoverSender
	assert.Error(t, nilSender.Send(context.Background(), "+1", "hi"))
	assert.Error(t, NewFailoverSender(nil).Send(context.Background(), "+1", "hi"))
}

func TestFailoverSenderSkipsFallbackAfterCancel(t *testing.T) {
	primary := &recordingSender{err: context.Canceled}
	secondary := &recordingSender{}
	f := NewFailoverSender(testLogger(), Route{ProviderUltraMsg, primary}, Route{ProviderTelnyx, secondary})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Send(ctx, "+1", "hi"), context.Canceled)
	assert.Equal(t, 0, secondary.calls)
}

func TestBuildSender(t *testing.T) {
	full := ProviderSelectionConfig{
		UltraMsgInstanceID:       "instance",
		UltraMsgToken:            "token",
		TelnyxAPIKey:             "key",
		TelnyxMessagingProfileID: "profile",
	}

	sender, name, reason := BuildSender(full, testLogger())
	require.NotNil(t, sender)
	assert.Equal(t, "ultramsg+telnyx", name)
	assert.Empty(t, reason)
	assert.IsType(t, &FailoverSender{}, sender)

	forced := full
	forced.Preference = "Telnyx"
	sender, name, _ = BuildSender(forced, testLogger())
	assert.IsType(t, &TelnyxSender{}, sender)
	assert.Equal(t, ProviderTelnyx, name)

	onlyUltra := ProviderSelectionConfig{UltraMsgInstanceID: "instance", UltraMsgToken: "token"}
	sender, name, _ = BuildSender(onlyUltra, testLogger())
	assert.IsType(t, &UltraMsgSender{}, sender)
	assert.Equal(t, ProviderUltraMsg, name)

	onlyUltra.Preference = ProviderTelnyx
	sender, _, reason = BuildSender(onlyUltra, testLogger())
	assert.Nil(t, sender)
	assert.Contains(t, reason, "TELNYX_API_KEY missing")

	sender, _, reason = BuildSender(ProviderSelectionConfig{}, testLogger())
	assert.Nil(t, sender)
	assert.Contains(t, reason, "ultramsg: ULTRAMSG_INSTANCE_ID missing, ULTRAMSG_TOKEN missing")
	assert.Contains(t, reason, "telnyx: TELNYX_API_KEY missing")
}
