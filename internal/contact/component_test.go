package contact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/conneroisu/contactform/internal/contact"
	"github.com/conneroisu/contactform/internal/contact/mocks"
	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/toast"
)

type harness struct {
	component *contact.Component
	sender    *mocks.MockSender
	challenge *mocks.MockChallenge
	notifier  *mocks.MockNotifier
	states    chan contact.State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)

	h := &harness{
		sender:    mocks.NewMockSender(ctrl),
		challenge: mocks.NewMockChallenge(ctrl),
		notifier:  mocks.NewMockNotifier(ctrl),
		states:    make(chan contact.State, 64),
	}

	component, err := contact.New(context.Background(), contact.Options{
		Sender:    h.sender,
		Challenge: h.challenge,
		Notifier:  h.notifier,
		OnChange: func(s contact.State) {
			h.states <- s
		},
	})
	require.NoError(t, err)
	h.component = component
	t.Cleanup(func() { _ = component.Close() })

	return h
}

func (h *harness) fill(t *testing.T, name, email, message string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.component.ChangeField(ctx, "name", name))
	require.NoError(t, h.component.ChangeField(ctx, "email", email))
	require.NoError(t, h.component.ChangeField(ctx, "message", message))
}

// waitSettled drains state updates until the loading flag has gone up and
// come back down.
func (h *harness) waitSettled(t *testing.T) contact.State {
	t.Helper()
	seenLoading := false
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.states:
			if s.IsFormLoading {
				seenLoading = true
				continue
			}
			if seenLoading {
				return s
			}
		case <-timeout:
			t.Fatal("send never settled")
			return contact.State{}
		}
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := contact.New(context.Background(), contact.Options{})
	require.Error(t, err)
}

func TestComponent_ChangeField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.component.ChangeField(ctx, "name", "Ann"))
	s, err := h.component.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", s.Name)
	assert.True(t, s.HasContent(contact.FieldName))
	assert.False(t, s.HasContent(contact.FieldEmail))

	require.NoError(t, h.component.ChangeField(ctx, "name", ""))
	s, err = h.component.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", s.Name)
	assert.False(t, s.HasContent(contact.FieldName))
}

func TestComponent_ChangeFieldUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.component.ChangeField(ctx, "phone", "555")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	s, err := h.component.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, contact.State{}, s)
}

func TestComponent_SubmitOnlyExecutesChallenge(t *testing.T) {
	h := newHarness(t)
	h.fill(t, "Ann", "a@b.com", "Hi")

	h.challenge.EXPECT().Execute(gomock.Any()).Return(nil).Times(1)

	require.NoError(t, h.component.Submit(context.Background()))

	s, err := h.component.State(context.Background())
	require.NoError(t, err)
	assert.False(t, s.IsFormLoading)
}

func TestComponent_SubmitExecuteFailure(t *testing.T) {
	h := newHarness(t)
	h.challenge.EXPECT().Execute(gomock.Any()).Return(errors.New("widget gone"))

	err := h.component.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget gone")
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestComponent_SendFulfilled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fill(t, "Ann", "a@b.com", "Hi")

	h.challenge.EXPECT().Execute(gomock.Any()).Return(nil)
	require.NoError(t, h.component.Submit(ctx))

	gomock.InOrder(
		h.sender.EXPECT().
			Send(gomock.Any(), contact.Submission{Name: "Ann", Email: "a@b.com", Message: "Hi", Token: "T1"}).
			Return("Thanks!", nil),
		h.notifier.EXPECT().Notify("Thanks!", toast.KindSuccess).Return(toast.Toast{}),
		h.challenge.EXPECT().Reset(gomock.Any()).Return(nil).Times(1),
	)

	require.NoError(t, h.component.ChallengeChanged(ctx, "T1"))

	final := h.waitSettled(t)
	assert.False(t, final.IsFormLoading)
	assert.Equal(t, "Ann", final.Name)
}

func TestComponent_SendRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fill(t, "Ann", "a@b.com", "Hi")

	h.challenge.EXPECT().Execute(gomock.Any()).Return(nil)
	require.NoError(t, h.component.Submit(ctx))

	gomock.InOrder(
		h.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return("", apperrors.NewSubmissionError("Network error", errors.New("status 502"))),
		h.notifier.EXPECT().Notify("Network error", toast.KindError).Return(toast.Toast{}),
		h.challenge.EXPECT().Reset(gomock.Any()).Return(nil).Times(1),
	)

	require.NoError(t, h.component.ChallengeChanged(ctx, "T1"))

	final := h.waitSettled(t)
	assert.False(t, final.IsFormLoading)
}

func TestComponent_NullTokenIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fill(t, "Ann", "a@b.com", "Hi")
	before, err := h.component.State(ctx)
	require.NoError(t, err)

	require.NoError(t, h.component.ChallengeChanged(ctx, ""))

	after, err := h.component.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, after.IsFormLoading)
}

func TestComponent_LoadingFlagLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	release := make(chan struct{})
	h.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, sub contact.Submission) (string, error) {
			<-release
			return "Thanks!", nil
		}).Times(1)
	h.notifier.EXPECT().Notify("Thanks!", toast.KindSuccess).Return(toast.Toast{})
	h.challenge.EXPECT().Reset(gomock.Any()).Return(nil)

	require.NoError(t, h.component.ChallengeChanged(ctx, "T1"))

	s, err := h.component.State(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsFormLoading, "loading flag is raised before ChallengeChanged returns")

	// both are ignored while the send is pending
	require.NoError(t, h.component.Submit(ctx))
	require.NoError(t, h.component.ChallengeChanged(ctx, "T2"))

	close(release)
	final := h.waitSettled(t)
	assert.False(t, final.IsFormLoading)
}

func TestComponent_ResetFailureStillSettles(t *testing.T) {
	h := newHarness(t)

	h.sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return("Thanks!", nil)
	h.notifier.EXPECT().Notify("Thanks!", toast.KindSuccess).Return(toast.Toast{})
	h.challenge.EXPECT().Reset(gomock.Any()).Return(errors.New("socket closed"))

	require.NoError(t, h.component.ChallengeChanged(context.Background(), "T1"))

	final := h.waitSettled(t)
	assert.False(t, final.IsFormLoading)
}

func TestComponent_CloseDiscardsPendingSend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	started := make(chan struct{})
	h.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, sub contact.Submission) (string, error) {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		})
	// no Notify or Reset expectations: either call fails the test

	require.NoError(t, h.component.ChallengeChanged(ctx, "T1"))
	<-started

	require.NoError(t, h.component.Close())

	select {
	case <-h.component.Done():
	default:
		t.Fatal("event loop still running after Close")
	}

	err := h.component.ChangeField(ctx, "name", "Ann")
	assert.ErrorIs(t, err, apperrors.ErrComponentClosed)
}

func TestComponent_ParentCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	parent, cancel := context.WithCancel(context.Background())

	component, err := contact.New(parent, contact.Options{
		Sender:    mocks.NewMockSender(ctrl),
		Challenge: mocks.NewMockChallenge(ctrl),
		Notifier:  mocks.NewMockNotifier(ctrl),
	})
	require.NoError(t, err)

	cancel()
	select {
	case <-component.Done():
	case <-time.After(time.Second):
		t.Fatal("component did not stop with its parent context")
	}
	_, err = component.State(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrComponentClosed)
}

func TestComponent_CloseAbandonsSendThatIgnoresCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	returned := make(chan struct{})
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, contact.Submission) (string, error) {
			defer close(returned)
			close(started)
			<-release
			return "late", nil
		})

	component, err := contact.New(context.Background(), contact.Options{
		Sender:    sender,
		Challenge: mocks.NewMockChallenge(ctrl),
		Notifier:  mocks.NewMockNotifier(ctrl),
		CloseWait: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, component.ChallengeChanged(context.Background(), "T1"))
	<-started

	begin := time.Now()
	require.NoError(t, component.Close())
	assert.Less(t, time.Since(begin), time.Second)

	// the late result reaches neither the notifier nor the widget
	close(release)
	<-returned
	time.Sleep(50 * time.Millisecond)
}
