package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

func TestSendGridDeliverer(t *testing.T) {
	var got map[string]any
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	d := NewSendGridDeliverer(Config{APIKey: "sg-key", FromName: "Noturno", FromAddr: "vendas@noturno.app", Host: srv.URL}, logger.Nop())

	t.Run("Success - accepted", func(t *testing.T) {
		require.NoError(t, d.Deliver(context.Background(), "lead@example.com", "Oi", "linha 1\nlinha <2>"))

		assert.Equal(t, "Oi", got["subject"])
		from := got["from"].(map[string]any)
		assert.Equal(t, "vendas@noturno.app", from["email"])

		content := got["content"].([]any)
		require.Len(t, content, 2)
		assert.Equal(t, "linha 1\nlinha <2>", content[0].(map[string]any)["value"])
		assert.Contains(t, content[1].(map[string]any)["value"], "linha 1<br>linha &lt;2&gt;")
	})

	t.Run("Error - rejected", func(t *testing.T) {
		status = http.StatusBadRequest
		assert.Error(t, d.Deliver(context.Background(), "lead@example.com", "Oi", "corpo"))
	})
}

func TestNewPicksDeliverer(t *testing.T) {
	_, console := New(Config{}, logger.Nop()).(*ConsoleDeliverer)
	assert.True(t, console)

	_, sg := New(Config{APIKey: "k"}, logger.Nop()).(*SendGridDeliverer)
	assert.True(t, sg)

	assert.NoError(t, NewConsoleDeliverer(logger.Nop()).Deliver(context.Background(), "a@b.c", "s", "b"))
}
