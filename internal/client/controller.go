package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/brattlof/userview/internal/app/render"
	"github.com/brattlof/userview/internal/user"
)

type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Field is an input control the view reads a value from, such as #username.
type Field interface {
	Value() string
}

// StaticField is a Field with a fixed value.
type StaticField string

func (f StaticField) Value() string { return string(f) }

// Request tracks one in-flight call. It moves from pending to exactly one of
// succeeded or failed and never back.
type Request struct {
	done  chan struct{}
	mu    sync.Mutex
	state State
	err   error
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

func (r *Request) finish(err error) {
	r.mu.Lock()
	if err != nil {
		r.state = StateFailed
		r.err = err
	} else {
		r.state = StateSucceeded
	}
	r.mu.Unlock()
	close(r.done)
}

func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err is the reason a failed request failed. It is for diagnostics only; the
// view never shows it.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Request) Done() <-chan struct{} {
	return r.done
}

func (r *Request) Wait() {
	<-r.done
}

// Controller issues calls against the users service and renders their results
// into a table. Calls are fire-and-forget: on failure nothing is rendered and
// the caller is never told.
type Controller struct {
	api    API
	table  *render.Table
	logger *slog.Logger
	wg     conc.WaitGroup
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(api API, table *render.Table, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:    api,
		table:  table,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Table() *render.Table {
	return c.table
}

// RequestAddUser reads the username from input and posts it. On success the
// locally built payload is rendered, whatever the service answered.
func (c *Controller) RequestAddUser(ctx context.Context, input Field) *Request {
	payload := user.User{Username: input.Value()}

	return c.start("add_user", func() error {
		if err := c.api.AddUser(ctx, payload.Username); err != nil {
			return err
		}
		c.table.AppendUser(payload)
		return nil
	})
}

// RequestUserList fetches all users and renders them as a sorted list.
func (c *Controller) RequestUserList(ctx context.Context) *Request {
	return c.start("list_users", func() error {
		users, err := c.api.ListUsers(ctx)
		if err != nil {
			return err
		}
		c.table.AppendList(users)
		return nil
	})
}

// Wait blocks until every request started so far has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) start(op string, fn func() error) *Request {
	req := newRequest()

	c.wg.Go(func() {
		var err error
		var pc panics.Catcher
		pc.Try(func() {
			err = fn()
		})
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}

		if err != nil {
			c.logger.Debug("request dropped", "op", op, "error", err)
		} else {
			c.logger.Debug("request completed", "op", op)
		}
		req.finish(err)
	})

	return req
}
