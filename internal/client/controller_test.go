package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brattlof/userview/internal/app/render"
	"github.com/brattlof/userview/internal/user"
)

type fakeAPI struct {
	addErr    error
	addPanic  bool
	users     []user.User
	listErr   error
	gate      chan struct{}
	addedName string
}

func (f *fakeAPI) AddUser(ctx context.Context, username string) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.addPanic {
		panic("boom")
	}
	f.addedName = username
	return f.addErr
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]user.User, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.users, f.listErr
}

func TestController_RequestAddUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"Carol-Normalized"}`))
	}))
	defer srv.Close()

	table := render.NewTable()
	table.AppendList([]user.User{{Username: "alice"}, {Username: "bob"}})
	before := table.Count()

	ctl := NewController(New(srv.URL), table)
	req := ctl.RequestAddUser(context.Background(), StaticField("carol"))
	req.Wait()

	if req.State() != StateSucceeded {
		t.Fatalf("State() = %v, want succeeded (err = %v)", req.State(), req.Err())
	}
	rows := table.Rows()
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	want := render.Row{Label: before + 1, Username: "carol"}
	if rows[2] != want {
		t.Errorf("appended row = %v, want %v", rows[2], want)
	}
	if table.Count() != before+1 {
		t.Errorf("Count() = %d, want %d", table.Count(), before+1)
	}
}

func TestController_RequestAddUserNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	table := render.NewTable()
	ctl := NewController(New(srv.URL), table)
	req := ctl.RequestAddUser(context.Background(), StaticField("carol"))
	req.Wait()

	if req.State() != StateSucceeded {
		t.Fatalf("State() = %v, want succeeded (err = %v)", req.State(), req.Err())
	}
	rows := table.Rows()
	if len(rows) != 1 || rows[0] != (render.Row{Label: 1, Username: "carol"}) {
		t.Errorf("rows = %v, want [{1 carol}]", rows)
	}
}

func TestController_RequestUserListNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	table := render.NewTable()
	req := NewController(New(srv.URL), table).RequestUserList(context.Background())
	req.Wait()

	if req.State() != StateFailed {
		t.Errorf("State() = %v, want failed", req.State())
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestController_RequestAddUserNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	table := render.NewTable()
	table.AppendUser(user.User{Username: "zed"})

	ctl := NewController(New(url), table)
	req := ctl.RequestAddUser(context.Background(), StaticField("carol"))
	req.Wait()

	if req.State() != StateFailed {
		t.Errorf("State() = %v, want failed", req.State())
	}
	if req.Err() == nil {
		t.Error("Err() = nil, want transport error")
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
	if table.Count() != 1 {
		t.Errorf("Count() = %d, want 1", table.Count())
	}
}

func TestController_RequestAddUserRejected(t *testing.T) {
	api := &fakeAPI{addErr: ErrUnexpectedStatus}
	table := render.NewTable()

	ctl := NewController(api, table)
	req := ctl.RequestAddUser(context.Background(), StaticField("carol"))
	req.Wait()

	if req.State() != StateFailed {
		t.Errorf("State() = %v, want failed", req.State())
	}
	if api.addedName != "carol" {
		t.Errorf("posted username = %q, want carol", api.addedName)
	}
	if table.Len() != 0 || table.Count() != 0 {
		t.Errorf("table = %d rows / count %d, want empty", table.Len(), table.Count())
	}
}

func TestController_RecoversPanics(t *testing.T) {
	table := render.NewTable()
	ctl := NewController(&fakeAPI{addPanic: true}, table)

	req := ctl.RequestAddUser(context.Background(), StaticField("carol"))
	ctl.Wait()

	if req.State() != StateFailed {
		t.Errorf("State() = %v, want failed", req.State())
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestController_RequestUserList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"username":"bob"},{"username":"alice"}]`))
	}))
	defer srv.Close()

	table := render.NewTable()
	for i := 0; i < 5; i++ {
		table.AppendUser(user.User{Username: "old"})
	}

	ctl := NewController(New(srv.URL), table)
	req := ctl.RequestUserList(context.Background())
	req.Wait()

	if req.State() != StateSucceeded {
		t.Fatalf("State() = %v, want succeeded (err = %v)", req.State(), req.Err())
	}
	if table.Count() != 2 {
		t.Errorf("Count() = %d, want 2", table.Count())
	}
	rows := table.Rows()
	if len(rows) != 7 {
		t.Fatalf("len(rows) = %d, want 7", len(rows))
	}
	if rows[5] != (render.Row{Label: 1, Username: "alice"}) || rows[6] != (render.Row{Label: 2, Username: "bob"}) {
		t.Errorf("appended rows = %v, want [{1 alice} {2 bob}]", rows[5:])
	}
}

func TestController_RequestUserListFailure(t *testing.T) {
	table := render.NewTable()
	table.AppendUser(user.User{Username: "carol"})

	ctl := NewController(&fakeAPI{listErr: errors.New("connection refused")}, table)
	req := ctl.RequestUserList(context.Background())
	req.Wait()

	if req.State() != StateFailed {
		t.Errorf("State() = %v, want failed", req.State())
	}
	if table.Len() != 1 || table.Count() != 1 {
		t.Errorf("table = %d rows / count %d, want 1 / 1", table.Len(), table.Count())
	}
}

func TestController_PendingUntilResponse(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	ctl := NewController(api, render.NewTable())

	req := ctl.RequestAddUser(context.Background(), StaticField("carol"))
	if req.State() != StatePending {
		t.Errorf("State() = %v, want pending", req.State())
	}
	select {
	case <-req.Done():
		t.Fatal("request completed before response")
	default:
	}

	close(api.gate)
	req.Wait()
	if req.State() != StateSucceeded {
		t.Errorf("State() = %v, want succeeded", req.State())
	}
}

func TestController_ConcurrentRequests(t *testing.T) {
	api := &fakeAPI{users: []user.User{{Username: "b"}, {Username: "a"}}}
	table := render.NewTable()
	ctl := NewController(api, table)

	for i := 0; i < 10; i++ {
		ctl.RequestUserList(context.Background())
	}
	ctl.Wait()

	if table.Len() != 20 {
		t.Errorf("Len() = %d, want 20", table.Len())
	}
	if table.Count() != 2 {
		t.Errorf("Count() = %d, want 2", table.Count())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePending, "pending"},
		{StateSucceeded, "succeeded"},
		{StateFailed, "failed"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
