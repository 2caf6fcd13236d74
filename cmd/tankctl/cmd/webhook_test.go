package cmd

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shawn/tankwatch/internal/cli/api"
	"github.com/shawn/tankwatch/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useJSON(t *testing.T) {
	t.Helper()
	outputFormat = "json"
	t.Cleanup(func() { outputFormat = "table" })
}

func TestWebhookCreateCommand(t *testing.T) {
	mockClient := &api.MockClient{
		CreateWebhookFunc: func(ctx stdcontext.Context, in webhook.Input) (*webhook.Registration, error) {
			assert.Equal(t, "avisos", in.Name)
			assert.Equal(t, webhook.IntegrationSlingFlow, in.Integration)
			assert.Equal(t, webhook.EventInspectionAlert, in.EventType)
			assert.Equal(t, []string{"c-1", "c-2"}, in.ContactIDs)
			assert.Nil(t, in.Active)
			return &webhook.Registration{
				ID: "wh-1", Name: in.Name, Integration: in.Integration, EventType: in.EventType,
				ContactIDs: in.ContactIDs, Active: true,
			}, nil
		},
	}

	cmd := newWebhookCreateCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"avisos", "--integration", "slingflow", "--contact", "c-1", "--contact", "c-2"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Webhook 'avisos' registered")
	assert.Contains(t, output, "Contacts:    c-1, c-2")
	assert.Contains(t, output, "Status:      active")
}

func TestWebhookCreateCommand_Inactive(t *testing.T) {
	mockClient := &api.MockClient{
		CreateWebhookFunc: func(ctx stdcontext.Context, in webhook.Input) (*webhook.Registration, error) {
			require.NotNil(t, in.Active)
			assert.False(t, *in.Active)
			return &webhook.Registration{ID: "wh-2", Name: in.Name}, nil
		},
	}

	cmd := newWebhookCreateCmd(mockClient)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"frota", "--url", "https://hooks.example.com", "--inactive"})
	assert.NoError(t, cmd.Execute())
}

func TestWebhookCreateCommand_Error(t *testing.T) {
	mockClient := &api.MockClient{
		CreateWebhookFunc: func(ctx stdcontext.Context, in webhook.Input) (*webhook.Registration, error) {
			return nil, &api.Error{StatusCode: 400, Message: "url: is required", Field: "url"}
		},
	}

	cmd := newWebhookCreateCmd(mockClient)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"frota"})

	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, errBuf.String(), "Failed to create webhook")
}

func TestWebhookListCommand(t *testing.T) {
	mockClient := &api.MockClient{
		ListWebhooksFunc: func(ctx stdcontext.Context) ([]webhook.Registration, error) {
			return []webhook.Registration{
				{ID: "wh-1", Name: "frota", Integration: webhook.IntegrationGeneric, EventType: webhook.EventInspectionAlert, URL: "https://a.example.com", Active: true},
				{ID: "wh-2", Name: "avisos", Integration: webhook.IntegrationSlingFlow, EventType: webhook.EventInspectionAlert, ContactIDs: []string{"c-1"}},
			}, nil
		},
	}

	cmd := newWebhookListCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "INTEGRATION")
	assert.Contains(t, output, "https://a.example.com")
	assert.Contains(t, output, "contacts: c-1")
	assert.Contains(t, output, "disabled")
}

func TestWebhookListCommand_Empty(t *testing.T) {
	cmd := newWebhookListCmd(&api.MockClient{})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No webhooks registered")
}

func TestWebhookListCommand_JSON(t *testing.T) {
	useJSON(t)
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mockClient := &api.MockClient{
		ListWebhooksFunc: func(ctx stdcontext.Context) ([]webhook.Registration, error) {
			return []webhook.Registration{{ID: "wh-1", Name: "frota", Active: true, CreatedAt: created}}, nil
		},
	}

	cmd := newWebhookListCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())

	var got []webhook.Registration
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "wh-1", got[0].ID)
	assert.True(t, got[0].CreatedAt.Equal(created))
}

func TestWebhookGetCommand(t *testing.T) {
	mockClient := &api.MockClient{
		GetWebhookFunc: func(ctx stdcontext.Context, id string) (*webhook.Registration, error) {
			assert.Equal(t, "wh-7", id)
			return &webhook.Registration{ID: id, Name: "sophia", Integration: webhook.IntegrationSophiaAI, URL: "https://sophia.example.com", Active: true}, nil
		},
	}

	cmd := newWebhookGetCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"wh-7"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Integration: sophia_ai")
	assert.Contains(t, buf.String(), "URL:         https://sophia.example.com")
}

func TestWebhookUpdateCommand_OnlyChangedFields(t *testing.T) {
	mockClient := &api.MockClient{
		UpdateWebhookFunc: func(ctx stdcontext.Context, id string, p webhook.Patch) (*webhook.Registration, error) {
			assert.Equal(t, "wh-1", id)
			require.NotNil(t, p.URL)
			assert.Equal(t, "", *p.URL)
			require.NotNil(t, p.ContactIDs)
			assert.Equal(t, []string{"c-9"}, *p.ContactIDs)
			assert.Nil(t, p.Name)
			assert.Nil(t, p.Integration)
			assert.Nil(t, p.EventType)
			return &webhook.Registration{ID: id, Name: "avisos", ContactIDs: *p.ContactIDs, Active: true}, nil
		},
	}

	cmd := newWebhookUpdateCmd(mockClient)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"wh-1", "--url", "", "--contact", "c-9"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Webhook 'wh-1' updated")
}

func TestWebhookUpdateCommand_NoFlags(t *testing.T) {
	called := false
	mockClient := &api.MockClient{
		UpdateWebhookFunc: func(ctx stdcontext.Context, id string, p webhook.Patch) (*webhook.Registration, error) {
			called = true
			return nil, nil
		},
	}

	cmd := newWebhookUpdateCmd(mockClient)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"wh-1"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "nothing to update")
	assert.False(t, called)
}

func TestWebhookDisableEnableCommands(t *testing.T) {
	var calls []string
	mockClient := &api.MockClient{
		DisableWebhookFunc: func(ctx stdcontext.Context, id string) (*webhook.Registration, error) {
			calls = append(calls, "disable:"+id)
			return &webhook.Registration{ID: id}, nil
		},
		EnableWebhookFunc: func(ctx stdcontext.Context, id string) (*webhook.Registration, error) {
			calls = append(calls, "enable:"+id)
			return &webhook.Registration{ID: id, Active: true}, nil
		},
	}

	buf := new(bytes.Buffer)
	disable := newWebhookToggleCmd(mockClient, false)
	disable.SetOut(buf)
	disable.SetArgs([]string{"wh-3"})
	require.NoError(t, disable.Execute())

	enable := newWebhookToggleCmd(mockClient, true)
	enable.SetOut(buf)
	enable.SetArgs([]string{"wh-3"})
	require.NoError(t, enable.Execute())

	assert.Equal(t, []string{"disable:wh-3", "enable:wh-3"}, calls)
	assert.Contains(t, buf.String(), "Webhook 'wh-3' disabled")
	assert.Contains(t, buf.String(), "Webhook 'wh-3' enabled")
}

func TestWebhookEnableCommand_UnknownContacts(t *testing.T) {
	mockClient := &api.MockClient{
		EnableWebhookFunc: func(ctx stdcontext.Context, id string) (*webhook.Registration, error) {
			return nil, errors.New("server returned HTTP 400: contactIds: unknown contacts: c-404")
		},
	}

	cmd := newWebhookToggleCmd(mockClient, true)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"wh-3"})

	assert.Error(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Failed to enable webhook")
	assert.Contains(t, errBuf.String(), "c-404")
}

func TestRootCommand_SetsHTTPTarget(t *testing.T) {
	client := api.NewHTTPClient("", "")
	root := newRootCmd(client)
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{"version", "--server-url", "http://tankwatch.internal:9000", "--token", "abc"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "http://tankwatch.internal:9000", serverURL)
	assert.Equal(t, "abc", token)
}
