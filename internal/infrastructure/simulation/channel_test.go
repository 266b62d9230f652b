package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-api-verification/internal/domain"
)

func payload(email, code string) domain.DeliveryPayload {
	return domain.DeliveryPayload{
		RecipientEmail:   email,
		RecipientName:    "Student",
		VerificationCode: code,
		ProductName:      "LMS Academy",
		ExpiryLabel:      "5 minutes",
	}
}

func TestChannel_NeverFailsWithoutNotifier(t *testing.T) {
	c := NewChannel(nil)
	assert.Equal(t, domain.ChannelSimulation, c.Name())
	assert.NoError(t, c.Deliver(context.Background(), payload("a@gmail.com", "123456")))
}

func TestChannel_NotifiesInjectedCallback(t *testing.T) {
	var got []Notice
	c := NewChannel(NotifierFunc(func(_ context.Context, n Notice) { got = append(got, n) }))

	require.NoError(t, c.Deliver(context.Background(), payload("a@gmail.com", "123456")))

	require.Len(t, got, 1)
	assert.Equal(t, "a@gmail.com", got[0].Email)
	assert.Equal(t, "123456", got[0].Code)
	assert.Equal(t, "5 minutes", got[0].ExpiryLabel)
	assert.False(t, got[0].DeliveredAt.IsZero())
}

func TestChannel_CancelledContextStillDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inbox := NewInbox(10)
	require.NoError(t, NewChannel(inbox).Deliver(ctx, payload("a@gmail.com", "123456")))

	_, ok := inbox.Latest("a@gmail.com")
	assert.True(t, ok)
}

func TestInbox_KeepsLatestPerEmail(t *testing.T) {
	inbox := NewInbox(10)
	c := NewChannel(inbox)
	require.NoError(t, c.Deliver(context.Background(), payload("a@gmail.com", "111111")))
	require.NoError(t, c.Deliver(context.Background(), payload("a@gmail.com", "222222")))

	n, ok := inbox.Latest("a@gmail.com")
	require.True(t, ok)
	assert.Equal(t, "222222", n.Code)
}

func TestInbox_Bounded(t *testing.T) {
	inbox := NewInbox(2)
	ctx := context.Background()
	inbox.Notify(ctx, Notice{Email: "a@gmail.com", Code: "1"})
	inbox.Notify(ctx, Notice{Email: "b@gmail.com", Code: "2"})
	inbox.Notify(ctx, Notice{Email: "a@gmail.com", Code: "3"})
	inbox.Notify(ctx, Notice{Email: "c@gmail.com", Code: "4"})

	_, ok := inbox.Latest("b@gmail.com")
	assert.False(t, ok, "least recently written entry is dropped")
	n, ok := inbox.Latest("a@gmail.com")
	require.True(t, ok)
	assert.Equal(t, "3", n.Code)
	_, ok = inbox.Latest("c@gmail.com")
	assert.True(t, ok)
}
