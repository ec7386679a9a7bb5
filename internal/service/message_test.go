package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/monitoring"
	"tempmail/ghostinbox/internal/provider"
)

func TestMailboxServiceProvision(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		p := &MockProvider{}
		m := monitoring.NewMetrics()
		p.On("Provision", mock.Anything).Return(mailbox("a@domain.test", "t"), nil)

		mb, err := NewMailboxService(p, m, zap.NewNop()).Provision(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "a@domain.test", mb.Address)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.MailboxesCreated))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("provision", "ok")))
	})

	t.Run("失败时保留错误分类", func(t *testing.T) {
		p := &MockProvider{}
		m := monitoring.NewMetrics()
		p.On("Provision", mock.Anything).Return(nil, provider.NewError("create_account", provider.ErrTransport, 500, nil))

		mb, err := NewMailboxService(p, m, zap.NewNop()).Provision(context.Background())

		assert.Nil(t, mb)
		assert.ErrorIs(t, err, ErrProvisionFailed)
		assert.ErrorIs(t, err, provider.ErrTransport)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ProvisionFailures))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("provision", "transport")))
	})
}

func TestMessageServiceFailSoft(t *testing.T) {
	p := &MockProvider{}
	m := monitoring.NewMetrics()
	svc := NewMessageService(p, m, zap.NewNop())
	ctx := context.Background()

	p.On("ListMessages", mock.Anything, "bad").Return(nil, provider.NewError("list_messages", provider.ErrAuth, 401, nil))
	p.On("FetchBody", mock.Anything, "1", "bad").Return("", errors.New("boom"))
	p.On("DeleteMessage", mock.Anything, "1", "bad").Return(provider.NewError("delete_message", provider.ErrUnsupported, 0, nil))

	msgs := svc.List(ctx, "bad")
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	body, ok := svc.Read(ctx, "1", "bad")
	assert.False(t, ok)
	assert.Empty(t, body)

	assert.False(t, svc.Delete(ctx, "1", "bad"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("list_messages", "auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("fetch_message", "transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("delete_message", "unsupported")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MessagesRead))
}

func TestRenderHelpers(t *testing.T) {
	assert.Equal(t, "10 min", humanDuration(10*time.Minute))
	assert.Equal(t, "30s", humanDuration(30*time.Second))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))

	assert.Equal(t, "abc", escapeTruncate("abc", 3))
	assert.Equal(t, "ab…", escapeTruncate("abc", 2))
	assert.Equal(t, "пр…", escapeTruncate("привет", 2))
	assert.Equal(t, "a&amp;…", escapeTruncate("a&<b", 7), "不截断半个实体")

	card := renderMailboxCard(1, "<x>@d.test", "status", 9)
	assert.Contains(t, card.Text, "&lt;x&gt;@d.test")
	assert.True(t, card.IsEdit())

	long := renderBody(1, "1", strings.Repeat("a", maxBodyRunes+50), provider.Capabilities{})
	assert.Less(t, len([]rune(long.Text)), 4096)

	escaped := renderBody(1, "1", strings.Repeat("&", maxBodyRunes), provider.Capabilities{})
	assert.Less(t, len([]rune(escaped.Text)), 4096, "转义后的正文仍在消息长度限制内")
	require.Len(t, long.Actions, 1)

	expired := renderExpired(1, "")
	assert.True(t, strings.HasPrefix(expired.Text, "⌛ Your inbox has expired."))

	notice := renderNewMail(1, domain.MessageSummary{ID: "7", From: "x@y.z"}, provider.Capabilities{})
	require.Len(t, notice.Actions, 1)
	assert.Equal(t, "check_mail", notice.Actions[0][0].Callback)
}
