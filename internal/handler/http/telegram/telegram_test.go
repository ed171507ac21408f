package telegram_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfumery-notify/internal/handler/http/telegram"
	"perfumery-notify/internal/infra/notifier"
	"perfumery-notify/internal/resilience/circuitbreaker"
)

const goodToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

type stubBot struct {
	info *notifier.BotInfo
	err  error
	got  string
}

func (b *stubBot) GetMe(_ context.Context, credential string) (*notifier.BotInfo, error) {
	b.got = credential
	return b.info, b.err
}

type stubRecipients struct {
	ids []string
	err error
}

func (s stubRecipients) Recipients(context.Context) ([]string, error) { return s.ids, s.err }
func (s stubRecipients) Health() []circuitbreaker.BreakerStatus {
	return []circuitbreaker.BreakerStatus{{Key: "-1001", State: "closed"}}
}

func router(bot *stubBot, rs stubRecipients) http.Handler {
	r := chi.NewRouter()
	telegram.Register(r, bot, rs)
	return r
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/test", strings.NewReader(body)))
	return rec
}

func TestCheckHandler(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		bot := &stubBot{info: &notifier.BotInfo{ID: 42, Username: "perfume_shop_bot", FirstName: "Shop"}}
		rec := post(router(bot, stubRecipients{}), `{"bot_token":" `+goodToken+` "}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var dto telegram.BotDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
		assert.Equal(t, "perfume_shop_bot", dto.Username)
		assert.Equal(t, goodToken, bot.got, "token is trimmed before the call")
	})

	t.Run("malformed token never reaches telegram", func(t *testing.T) {
		bot := &stubBot{}
		rec := post(router(bot, stubRecipients{}), `{"bot_token":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, bot.got)
	})

	t.Run("revoked token", func(t *testing.T) {
		bot := &stubBot{err: &notifier.APIError{Outcome: notifier.Outcome{Kind: notifier.OutcomeFatal, StatusCode: 401}}}
		rec := post(router(bot, stubRecipients{}), `{"bot_token":"`+goodToken+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid or revoked")
		assert.NotContains(t, rec.Body.String(), goodToken)
	})

	t.Run("provider down", func(t *testing.T) {
		bot := &stubBot{err: errors.New("dial tcp: i/o timeout")}
		rec := post(router(bot, stubRecipients{}), `{"bot_token":"`+goodToken+`"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestRecipientsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	router(&stubBot{}, stubRecipients{ids: []string{"-1001", "@shop_orders"}}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/recipients", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var dto telegram.RecipientsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, []string{"-1001", "@shop_orders"}, dto.Recipients)
	assert.Equal(t, "closed", dto.Breakers[0].State)

	rec = httptest.NewRecorder()
	router(&stubBot{}, stubRecipients{err: errors.New("db down")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/recipients", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	router(&stubBot{}, stubRecipients{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/recipients", nil))
	assert.JSONEq(t, `{"recipients":[],"breakers":[{"key":"-1001","state":"closed"}]}`, rec.Body.String())
}
