package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

func TestTestButtonLabel(t *testing.T) {
	assert.Equal(t, "Send Test Ping", TestButtonLabel(webhook.TestStatus{State: webhook.TestIdle}))
	assert.Equal(t, "Testing (7s)", TestButtonLabel(webhook.TestStatus{State: webhook.TestTesting, RemainingSeconds: 7}))
	assert.Equal(t, "Test Failed", TestButtonLabel(webhook.TestStatus{State: webhook.TestFailed}))
}

func TestRenderFieldErrors_SortedByField(t *testing.T) {
	out := RenderFieldErrors(map[string]string{"password": "p", "email": "e"})
	assert.Less(t, strings.Index(out, "email: e"), strings.Index(out, "password: p"))
}

func TestRenderSettings(t *testing.T) {
	out := RenderSettings(&models.WebhookSettingsResponse{Variables: map[string]string{"b": "2", "a": "1"}, Dirty: true})
	assert.Contains(t, out, "(not set)")
	assert.Less(t, strings.Index(out, "a = 1"), strings.Index(out, "b = 2"))
	assert.Contains(t, out, "Unsaved changes")
}

func TestRenderMessage_UsesDisplayText(t *testing.T) {
	out := RenderMessage(models.MessageResponse{Sender: models.SenderSystem, Content: `{"output":"hi"}`, DisplayText: "hi"})
	assert.Contains(t, out, "hi")
	assert.NotContains(t, out, "output")
	assert.Contains(t, out, "webhook")
}

func TestParseVars(t *testing.T) {
	rows, err := parseVars([]string{"z=1", "a=x=y", "="})
	require.NoError(t, err)
	assert.Equal(t, []validate.VariableRow{{Key: "a", Value: "x=y"}, {Key: "z", Value: "1"}}, rows)

	_, err = parseVars([]string{"=value"})
	assert.EqualError(t, err, "Variable name is required")

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
}
