package contact

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/toast"
)

// DefaultSendTimeout bounds a single send when Options.SendTimeout is zero.
const DefaultSendTimeout = 15 * time.Second

// DefaultCloseWait bounds how long Close waits for a cancelled send to return
// when Options.CloseWait is zero.
const DefaultCloseWait = 2 * time.Second

// Options wires a Component to its collaborators.
type Options struct {
	Sender    Sender
	Challenge Challenge
	Notifier  Notifier
	Logger    logging.Logger

	SendTimeout time.Duration
	CloseWait   time.Duration

	// OnChange receives every new state. It runs on the component's event
	// loop and must not call back into the component.
	OnChange func(State)
}

// Component owns one contact form. All state lives on a single event-loop
// goroutine; public methods post work to that loop and wait for it.
type Component struct {
	sender      Sender
	challenge   Challenge
	notifier    Notifier
	logger      logging.Logger
	sendTimeout time.Duration
	closeWait   time.Duration
	onChange    func(State)

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func()
	done   chan struct{}

	closeOnce sync.Once
	inflight  sync.WaitGroup

	// loop-owned
	state State
}

// New starts a component bound to parent. Cancelling parent tears it down
// the same way Close does.
func New(parent context.Context, opts Options) (*Component, error) {
	if opts.Sender == nil || opts.Challenge == nil || opts.Notifier == nil {
		return nil, apperrors.NewInternalError(apperrors.ErrCodeConfigInvalid,
			"contact component requires a sender, a challenge and a notifier", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	closeWait := opts.CloseWait
	if closeWait <= 0 {
		closeWait = DefaultCloseWait
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Component{
		sender:      opts.Sender,
		challenge:   opts.Challenge,
		notifier:    opts.Notifier,
		logger:      logger.WithComponent("contact"),
		sendTimeout: timeout,
		closeWait:   closeWait,
		onChange:    opts.OnChange,
		ctx:         ctx,
		cancel:      cancel,
		tasks:       make(chan func()),
		done:        make(chan struct{}),
	}
	go c.run()

	return c, nil
}

func (c *Component) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case task := <-c.tasks:
			task()
		}
	}
}

// dispatch runs fn on the event loop and waits for its result.
func (c *Component) dispatch(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() { result <- fn() }

	select {
	case c.tasks <- task:
	case <-c.ctx.Done():
		return apperrors.ErrComponentClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// an accepted task always runs to completion before the loop exits
	return <-result
}

// post queues fn without waiting. Work posted after teardown is dropped.
func (c *Component) post(fn func()) {
	select {
	case c.tasks <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Component) setState(s State) {
	c.state = s
	if c.onChange != nil {
		c.onChange(s)
	}
}

// State returns a copy of the current state.
func (c *Component) State(ctx context.Context) (State, error) {
	var s State
	err := c.dispatch(ctx, func() error {
		s = c.state
		return nil
	})
	return s, err
}

// ChangeField stores value under the input identified by id and toggles the
// label decoration. No content validation happens here.
func (c *Component) ChangeField(ctx context.Context, id string, value string) error {
	field, err := ParseField(id)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, func() error {
		c.setState(c.state.withField(field, value))
		return nil
	})
}

// Submit asks the challenge widget to execute. It never sends the form.
func (c *Component) Submit(ctx context.Context) error {
	return c.dispatch(ctx, func() error {
		if c.state.IsFormLoading {
			c.logger.Debug(ctx, "submit ignored while a send is in flight")
			return nil
		}
		if err := c.challenge.Execute(ctx); err != nil {
			return apperrors.NewNetworkError(apperrors.ErrCodeChallenge, "execute challenge", err)
		}
		return nil
	})
}

// ChallengeChanged receives the widget's verdict. An empty token means the
// challenge has not resolved and is ignored. A token starts the send; the
// method returns as soon as the loading flag is raised.
func (c *Component) ChallengeChanged(ctx context.Context, token string) error {
	return c.dispatch(ctx, func() error {
		if token == "" {
			return nil
		}
		if c.state.IsFormLoading {
			c.logger.Debug(ctx, "challenge token ignored while a send is in flight")
			return nil
		}

		c.setState(c.state.sending())
		sub := c.state.Submission(token)

		c.inflight.Add(1)
		go c.send(sub)
		return nil
	})
}

func (c *Component) send(sub Submission) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.sendTimeout)
	defer cancel()

	start := time.Now()
	message, err := c.sender.Send(ctx, sub)
	c.logger.Debug(ctx, "send settled", "duration", time.Since(start), "ok", err == nil)

	c.post(func() { c.settle(message, err) })
}

// settle runs on the loop. The notification is queued before the loading
// flag drops.
func (c *Component) settle(message string, err error) {
	if c.ctx.Err() != nil {
		return
	}

	if err != nil {
		c.logger.Warn(c.ctx, err, "submission failed")
		c.notifier.Notify(apperrors.UserMessage(err), toast.KindError)
	} else {
		c.logger.Info(c.ctx, "submission sent")
		c.notifier.Notify(message, toast.KindSuccess)
	}

	if rerr := c.challenge.Reset(c.ctx); rerr != nil {
		c.logger.Warn(c.ctx, rerr, "reset challenge")
	}

	c.setState(c.state.settled())
}

// Done is closed once the event loop has stopped.
func (c *Component) Done() <-chan struct{} {
	return c.done
}

// Close tears the component down. A pending send is cancelled and its result
// discarded; no notification or reset happens after Close returns. A send
// still running after CloseWait is left to finish on its own.
func (c *Component) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done

		idle := make(chan struct{})
		go func() {
			c.inflight.Wait()
			close(idle)
		}()

		timer := time.NewTimer(c.closeWait)
		defer timer.Stop()
		select {
		case <-idle:
		case <-timer.C:
			c.logger.Warn(context.Background(), nil, "send ignored cancellation, abandoning it", "waited", c.closeWait)
		}
	})
	return nil
}
