package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"alforge/config"
	"alforge/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsStub struct {
	s   *models.MailSettings
	err error
}

func (st settingsStub) GetMailSettings(context.Context) (*models.MailSettings, error) { return st.s, st.err }

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(out *[]sent) func(string, smtp.Auth, string, []string, []byte) error {
	return func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*out = append(*out, sent{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls int
	ok := Func(func(context.Context, Message) error { calls++; return nil })
	bad := Func(func(context.Context, Message) error { calls++; return errors.New("down") })

	err := Multi{ok, nil, bad, ok}.Send(context.Background(), Message{Kind: Ready})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
	assert.NoError(t, Nop{}.Send(context.Background(), Message{}))
}

func TestMailerUsesSavedSettings(t *testing.T) {
	var out []sent
	m := &Mailer{
		Settings: settingsStub{s: &models.MailSettings{Host: "smtp.example.org", Port: "465", Username: "bot@example.org", Enabled: true}},
		Env:      config.SMTP{Host: "env.example.org", Port: "25", From: "env@example.org"},
		AppName:  "Alforge 1104",
		SendMail: capture(&out),
	}

	err := m.Send(context.Background(), Message{
		Kind:          Submitted,
		RequisitionID: "r1",
		To:            []string{"staff@example.org"},
		Bcc:           []string{"chefe@example.org"},
		Context:       map[string]string{"requester": "Ana", "start": "2026-03-01", "end": "2026-03-03"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "smtp.example.org:465", out[0].addr)
	assert.Equal(t, "bot@example.org", out[0].from)
	assert.Equal(t, []string{"staff@example.org", "chefe@example.org"}, out[0].to)
	assert.Contains(t, out[0].msg, "Subject: [Alforge 1104] New requisition - Ana")
	assert.Contains(t, out[0].msg, "Dates: 2026-03-01 to 2026-03-03")
	assert.Contains(t, out[0].msg, "Notes: -")
	assert.NotContains(t, out[0].msg, "chefe@example.org")
}

func TestMailerDisabledSettingsSendNothing(t *testing.T) {
	var out []sent
	m := &Mailer{
		Settings: settingsStub{s: &models.MailSettings{Host: "smtp.example.org", Enabled: false}},
		Env:      config.SMTP{Host: "env.example.org", From: "env@example.org"},
		SendMail: capture(&out),
	}
	require.NoError(t, m.Send(context.Background(), Message{Kind: Ready, To: []string{"a@example.org"}}))
	assert.Empty(t, out)
}

func TestMailerFallsBackToEnv(t *testing.T) {
	var out []sent
	m := &Mailer{
		Settings: settingsStub{},
		Env:      config.SMTP{Host: "env.example.org", Port: "2525", From: "noreply@example.org"},
		SendMail: capture(&out),
	}
	require.NoError(t, m.SendInvite(context.Background(), "new@example.org", "https://app/login?inviteToken=x", 2))
	require.Len(t, out, 1)
	assert.Equal(t, "env.example.org:2525", out[0].addr)
	assert.Contains(t, out[0].msg, "Content-Type: text/html")
	assert.Contains(t, out[0].msg, "expire in 2 day(s)")
}

func TestMailerSettingsError(t *testing.T) {
	m := &Mailer{Settings: settingsStub{err: errors.New("db down")}}
	err := m.Send(context.Background(), Message{Kind: Ready, To: []string{"a@example.org"}})
	assert.ErrorContains(t, err, "db down")
}

func TestRenderCancelled(t *testing.T) {
	subject, body := renderMessage("Alforge", Message{Kind: Cancelled, Context: map[string]string{
		"requester": "Rui", "cancelledBy": "Ana", "reason": "weather",
	}})
	assert.Equal(t, "[Alforge] Requisition cancelled", subject)
	assert.True(t, strings.Contains(body, "Reason: weather"))
	assert.True(t, strings.Contains(body, "cancelled by Ana"))
}

func TestHubDeliversByAudience(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		_ = hub.Serve(w, r, q.Get("user"), q.Get("staff") == "1")
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	staff, _, err := websocket.DefaultDialer.Dial(base+"?user=g1&staff=1", nil)
	require.NoError(t, err)
	defer staff.Close()
	member, _, err := websocket.DefaultDialer.Dial(base+"?user=u2", nil)
	require.NoError(t, err)
	defer member.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Send(context.Background(), Message{Kind: Ready, RequisitionID: "r1", RequesterID: "u1"}))
	require.NoError(t, hub.Send(context.Background(), Message{Kind: Returned, RequisitionID: "r2", RequesterID: "u2"}))

	staff.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := staff.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(first), `"requisitionId":"r1"`)
	_, second, err := staff.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(second), `"requisitionId":"r2"`)

	// the member only sees their own requisition
	member.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := member.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(got), `"requisitionId":"r2"`)
	assert.NotContains(t, string(got), `"To"`)
}
