package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-api-verification/internal/domain"
	"github.com/go-api-verification/internal/infrastructure/memory"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, rec *domain.VerificationRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockStore) Get(ctx context.Context, email string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*domain.VerificationRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockStore) Consume(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, p domain.DeliveryPayload) (Delivery, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(Delivery), args.Error(1)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) SignVerification(email string) (string, error) {
	args := m.Called(email)
	return args.String(0), args.Error(1)
}

// recordingChannel captures every payload it is asked to deliver.
type recordingChannel struct {
	mu       sync.Mutex
	name     string
	err      error
	payloads []domain.DeliveryPayload
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(_ context.Context, p domain.DeliveryPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return c.err
}

func (c *recordingChannel) last() domain.DeliveryPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloads[len(c.payloads)-1]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc   Service
	clock *clock
	sim   *recordingChannel
}

// newHarness wires the service to a real in-memory store and a simulation-only chain.
func newHarness(t *testing.T) *harness {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	sim := &recordingChannel{name: domain.ChannelSimulation}
	d, err := NewDispatcher(map[string]Channel{domain.ChannelSimulation: sim}, domain.ChannelSimulation, nil, DispatcherOptions{})
	require.NoError(t, err)

	store := memory.NewVerificationStore(100, DefaultCodeTTL).WithClock(c.now)
	svc := NewService(ServiceDeps{
		Store:       store,
		Dispatcher:  d,
		CodeTTL:     DefaultCodeTTL,
		ProductName: "LMS Academy",
		Now:         c.now,
	})
	return &harness{svc: svc, clock: c, sim: sim}
}

// --- behaviour ---

func TestSendThenVerify_ConsumesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, "a@gmail.com", "482913", "")
	require.NoError(t, err)

	v, err := h.svc.Verify(ctx, "a@gmail.com", "482913")
	require.NoError(t, err)
	assert.Equal(t, "a@gmail.com", v.Email)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "482913")
	assert.ErrorIs(t, err, domain.ErrCodeNotSent)
}

func TestVerify_MismatchKeepsRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Send(ctx, "a@gmail.com", "482913", "")
	require.NoError(t, err)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "000000")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "482913")
	assert.NoError(t, err)
}

func TestVerify_WithoutSend(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Verify(context.Background(), "nobody@gmail.com", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeNotSent)
}

func TestVerify_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Send(ctx, "a@gmail.com", "482913", "")
	require.NoError(t, err)

	h.clock.advance(DefaultCodeTTL + time.Second)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "482913")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "482913")
	assert.ErrorIs(t, err, domain.ErrCodeNotSent, "expired record is removed on first check")
}

func TestVerify_AtExactExpiryStillValid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Send(ctx, "a@gmail.com", "482913", "")
	require.NoError(t, err)

	h.clock.advance(DefaultCodeTTL)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "482913")
	assert.NoError(t, err)
}

func TestResend_InvalidatesPreviousCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Send(ctx, "a@gmail.com", "111111", "")
	require.NoError(t, err)
	_, err = h.svc.Send(ctx, "a@gmail.com", "222222", "")
	require.NoError(t, err)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "111111")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	_, err = h.svc.Verify(ctx, "a@gmail.com", "222222")
	assert.NoError(t, err)
}

func TestSend_SimulationExposesCode(t *testing.T) {
	h := newHarness(t)
	out, err := h.svc.Send(context.Background(), "A@Gmail.com ", "482913", "")
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelSimulation, out.Channel)
	assert.Equal(t, "482913", out.DisplayCode)
	assert.False(t, out.FellBack)
	assert.NotEmpty(t, out.ID)
	assert.Contains(t, out.Message, "a@gmail.com")

	p := h.sim.last()
	assert.Equal(t, "a@gmail.com", p.RecipientEmail)
	assert.Equal(t, "a", p.RecipientName)
	assert.Equal(t, "LMS Academy", p.ProductName)
	assert.Equal(t, "5 minutes", p.ExpiryLabel)
}

func TestSend_NormalizesEmailForVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Send(ctx, " A@Gmail.COM", "482913", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", h.sim.last().RecipientName)

	_, err = h.svc.Verify(ctx, "a@gmail.com", " 482913 ")
	assert.NoError(t, err)
}

func TestIssue_GeneratesSixDigitCode(t *testing.T) {
	h := newHarness(t)
	out, err := h.svc.Issue(context.Background(), "a@gmail.com", "")
	require.NoError(t, err)
	assert.Regexp(t, `^[1-9][0-9]{5}$`, out.DisplayCode)

	_, err = h.svc.Verify(context.Background(), "a@gmail.com", out.DisplayCode)
	assert.NoError(t, err)
}

func TestSend_RealChannelHidesCode(t *testing.T) {
	st := &mockStore{}
	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(Delivery{Channel: domain.ChannelRelayA}, nil)

	svc := NewService(ServiceDeps{Store: st, Dispatcher: d})
	out, err := svc.Send(context.Background(), "a@gmail.com", "482913", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelRelayA, out.Channel)
	assert.Empty(t, out.DisplayCode)
}

func TestSend_StoresBeforeDispatch(t *testing.T) {
	var order []string
	st := &mockStore{}
	st.On("Put", mock.Anything, mock.Anything).Run(func(mock.Arguments) { order = append(order, "put") }).Return(nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Run(func(mock.Arguments) { order = append(order, "dispatch") }).
		Return(Delivery{Channel: domain.ChannelSimulation}, nil)

	_, err := NewService(ServiceDeps{Store: st, Dispatcher: d}).Send(context.Background(), "a@gmail.com", "482913", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"put", "dispatch"}, order)
}

func TestSend_BadInput(t *testing.T) {
	svc := NewService(ServiceDeps{Store: &mockStore{}, Dispatcher: &mockDispatcher{}})
	ctx := context.Background()

	cases := []struct{ email, code string }{
		{"", "123456"},
		{"   ", "123456"},
		{"a@gmail.com", "12345"},
		{"a@gmail.com", "12345a"},
		{"a@gmail.com", ""},
	}
	for _, tc := range cases {
		_, err := svc.Send(ctx, tc.email, tc.code, "")
		assert.ErrorIs(t, err, domain.ErrBadRequest, "email=%q code=%q", tc.email, tc.code)
	}
}

func TestSend_StoreFailureSkipsDispatch(t *testing.T) {
	st := &mockStore{}
	st.On("Put", mock.Anything, mock.Anything).Return(errors.New("boom"))
	d := &mockDispatcher{}

	_, err := NewService(ServiceDeps{Store: st, Dispatcher: d}).Send(context.Background(), "a@gmail.com", "482913", "")
	require.Error(t, err)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSend_StrictDispatchErrorSurfaces(t *testing.T) {
	st := &mockStore{}
	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).
		Return(Delivery{}, &domain.DispatchError{Channel: domain.ChannelRelayA, Err: errors.New("403")})

	_, err := NewService(ServiceDeps{Store: st, Dispatcher: d}).Send(context.Background(), "a@gmail.com", "482913", "")
	var dErr *domain.DispatchError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, domain.ChannelRelayA, dErr.Channel)
}

func TestVerify_EmptyCode(t *testing.T) {
	svc := NewService(ServiceDeps{Store: &mockStore{}, Dispatcher: &mockDispatcher{}})
	_, err := svc.Verify(context.Background(), "a@gmail.com", "  ")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestVerify_StoreReadFailure(t *testing.T) {
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@gmail.com").Return(nil, errors.New("timeout"))

	_, err := NewService(ServiceDeps{Store: st, Dispatcher: &mockDispatcher{}}).Verify(context.Background(), "a@gmail.com", "482913")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCodeNotSent)
}

func TestVerify_ConsumeFailureIsReturned(t *testing.T) {
	now := time.Now()
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@gmail.com").
		Return(&domain.VerificationRecord{Email: "a@gmail.com", Code: "482913", ExpiresAt: now.Add(time.Minute)}, nil)
	st.On("Consume", mock.Anything, "a@gmail.com", "482913").Return(errors.New("unavailable"))

	svc := NewService(ServiceDeps{Store: st, Dispatcher: &mockDispatcher{}, Now: func() time.Time { return now }})
	_, err := svc.Verify(context.Background(), "a@gmail.com", "482913")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCodeNotSent)
}

func TestVerify_LostConsumeRaceReportsNotSent(t *testing.T) {
	now := time.Now()
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@gmail.com").
		Return(&domain.VerificationRecord{Email: "a@gmail.com", Code: "482913", ExpiresAt: now.Add(time.Minute)}, nil)
	st.On("Consume", mock.Anything, "a@gmail.com", "482913").Return(domain.ErrNotFound)

	svc := NewService(ServiceDeps{Store: st, Dispatcher: &mockDispatcher{}, Now: func() time.Time { return now }})
	_, err := svc.Verify(context.Background(), "a@gmail.com", "482913")
	assert.ErrorIs(t, err, domain.ErrCodeNotSent)
}

func TestVerify_ConcurrentCorrectCodesSucceedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Send(ctx, "a@gmail.com", "482913", "")
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Verify(ctx, "a@gmail.com", "482913"); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestVerify_ExpiredDeleteFailureStillReportsExpired(t *testing.T) {
	now := time.Now()
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@gmail.com").
		Return(&domain.VerificationRecord{Email: "a@gmail.com", Code: "482913", ExpiresAt: now.Add(-time.Second)}, nil)
	st.On("Delete", mock.Anything, "a@gmail.com").Return(errors.New("unavailable"))

	svc := NewService(ServiceDeps{Store: st, Dispatcher: &mockDispatcher{}, Now: func() time.Time { return now }})
	_, err := svc.Verify(context.Background(), "a@gmail.com", "482913")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestVerify_SignsProofToken(t *testing.T) {
	now := time.Now()
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@gmail.com").
		Return(&domain.VerificationRecord{Email: "a@gmail.com", Code: "482913", ExpiresAt: now.Add(time.Minute)}, nil)
	st.On("Consume", mock.Anything, "a@gmail.com", "482913").Return(nil)
	signer := &mockSigner{}
	signer.On("SignVerification", "a@gmail.com").Return("signed.jwt.token", nil)

	svc := NewService(ServiceDeps{Store: st, Dispatcher: &mockDispatcher{}, Tokens: signer, Now: func() time.Time { return now }})
	v, err := svc.Verify(context.Background(), "a@gmail.com", "482913")
	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", v.Token)
}

func TestVerify_SigningFailureDoesNotFailVerify(t *testing.T) {
	now := time.Now()
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@gmail.com").
		Return(&domain.VerificationRecord{Email: "a@gmail.com", Code: "482913", ExpiresAt: now.Add(time.Minute)}, nil)
	st.On("Consume", mock.Anything, "a@gmail.com", "482913").Return(nil)
	signer := &mockSigner{}
	signer.On("SignVerification", "a@gmail.com").Return("", errors.New("no key"))

	svc := NewService(ServiceDeps{Store: st, Dispatcher: &mockDispatcher{}, Tokens: signer, Now: func() time.Time { return now }})
	v, err := svc.Verify(context.Background(), "a@gmail.com", "482913")
	require.NoError(t, err)
	assert.Empty(t, v.Token)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	st, err := h.svc.Status(ctx, "a@gmail.com")
	require.NoError(t, err)
	assert.False(t, st.Pending)

	_, err = h.svc.Send(ctx, "a@gmail.com", "482913", "")
	require.NoError(t, err)
	st, err = h.svc.Status(ctx, "A@gmail.com")
	require.NoError(t, err)
	assert.True(t, st.Pending)
	require.NotNil(t, st.ExpiresAt)
	assert.True(t, st.ExpiresAt.Equal(h.clock.now().Add(DefaultCodeTTL)))

	h.clock.advance(DefaultCodeTTL + time.Second)
	st, err = h.svc.Status(ctx, "a@gmail.com")
	require.NoError(t, err)
	assert.False(t, st.Pending)
	assert.Nil(t, st.ExpiresAt)
}

func TestConcurrentSendsLastWriteWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, code := range []string{"111111", "222222", "333333", "444444"} {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, _ = h.svc.Send(ctx, "a@gmail.com", code, "")
		}(code)
	}
	wg.Wait()

	matched := 0
	for _, code := range []string{"111111", "222222", "333333", "444444"} {
		if _, err := h.svc.Verify(ctx, "a@gmail.com", code); err == nil {
			matched++
		}
	}
	assert.Equal(t, 1, matched)
}

func TestScenario_SendMismatchVerifyReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Send(ctx, "a@gmail.com", "123456", "")
	require.NoError(t, err)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "111111")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "123456")
	require.NoError(t, err)

	_, err = h.svc.Verify(ctx, "a@gmail.com", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeNotSent)
}
