package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/forceplate.report/internal/forceplate/samples"
	"github.com/banshee-data/forceplate.report/internal/forceplate/synth"
	"github.com/banshee-data/forceplate.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// testPort is an in-memory port: reads come from a fixed script, writes
// are captured.
type testPort struct {
	io.Reader
	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func newTestPort(script string) *testPort {
	return &testPort{Reader: strings.NewReader(script)}
}

func (p *testPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *testPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *testPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

type readOnly struct{ io.Reader }

func (readOnly) Close() error { return nil }

func collect(t *testing.T, src *LineSource) ([]samples.ForceSample, error) {
	t.Helper()
	out := make(chan samples.ForceSample, 100)
	err := src.Run(context.Background(), out)
	close(out)
	var got []samples.ForceSample
	for s := range out {
		got = append(got, s)
	}
	return got, err
}

func TestLineSource_Run(t *testing.T) {
	script := strings.Join([]string{
		"# amplifier v2",
		"0,350,350",
		"",
		"1,351.5,349",
		"garbage",
		"2,352,348,10,20,-10,20",
		"3,1,2,3",
	}, "\n")
	src := NewLineSource("test", newTestPort(script))

	got, err := collect(t, src)
	require.NoError(t, err, "EOF ends the stream cleanly")
	require.Len(t, got, 3)
	assert.Equal(t, 700.5, got[1].Total)
	assert.True(t, got[2].HasCOP())

	st := src.Stats()
	assert.Equal(t, uint64(5), st.Lines)
	assert.Equal(t, uint64(3), st.Samples)
	assert.Equal(t, uint64(2), st.Malformed)
	assert.Contains(t, st.LastError, "expected 3 or 7 fields")
	assert.False(t, st.LastLine.IsZero())
}

func TestLineSource_ReadError(t *testing.T) {
	boom := errors.New("device reset")
	src := NewLineSource("test", readOnly{io.MultiReader(strings.NewReader("0,1,1\n"), iotest.ErrReader(boom))})
	got, err := collect(t, src)
	assert.Len(t, got, 1)
	assert.ErrorIs(t, err, boom)
}

func TestLineSource_CancelUnblocksRead(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	src := NewLineSource("pipe", r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, make(chan samples.ForceSample)) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLineSource_SendCommand(t *testing.T) {
	port := newTestPort("")
	src := NewLineSource("test", port)
	require.NoError(t, src.SendCommand("TARE"))
	require.NoError(t, src.SendCommand("RATE 1000\n"))
	assert.Equal(t, "TARE\nRATE 1000\n", port.Written())

	ro := NewLineSource("ro", readOnly{strings.NewReader("")})
	assert.ErrorIs(t, ro.SendCommand("TARE"), ErrReadOnlyPort)
}

func TestLineSource_Subscribe(t *testing.T) {
	src := NewLineSource("test", newTestPort("0,1,1\n1,2,2\n"))
	id, ch := src.Subscribe()

	_, err := collect(t, src)
	require.NoError(t, err)
	assert.Equal(t, "0,1,1", <-ch)
	assert.Equal(t, "1,2,2", <-ch)

	src.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, src.Close())
	_, late := src.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")
}

func TestReplayPort(t *testing.T) {
	ss := synth.Quiet(1000, 700, 50).Samples()
	src := NewLineSource("replay", NewReplayPort(ss, 0))

	got, err := collect(t, src)
	require.NoError(t, err)
	require.Len(t, got, len(ss))
	assert.InDelta(t, ss[10].Total, got[10].Total, 1e-3)
	assert.NoError(t, src.SendCommand("TARE"))
}

func TestReplayPort_CloseStopsWriter(t *testing.T) {
	ss := synth.Quiet(1000, 700, 5000).Samples()
	p := NewReplayPort(ss, 1)
	buf := make([]byte, 64)
	_, err := p.Read(buf)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	_, err = p.Read(buf)
	assert.Error(t, err)
}

func TestPortOptions_Normalise(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"explicit", PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}, PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"negative baud", PortOptions{BaudRate: -5}, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalise()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 115200, DataBits: 8, StopBits: serial.TwoStopBits, Parity: serial.OddParity}, mode)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{DataBits: 4}.SerialMode()
	assert.Error(t, err)
}

// localHostRequest creates an httptest request that appears to come from localhost.
// This bypasses tsweb.AllowDebugAccess which checks for loopback IPs.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAttachAdminRoutes(t *testing.T) {
	port := newTestPort("0,350,350\nbad\n")
	src := NewLineSource("/dev/ttyTEST", port)
	_, err := collect(t, src)
	require.NoError(t, err)

	mux := http.NewServeMux()
	src.AttachAdminRoutes(mux)

	t.Run("counter page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/ingest", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "/dev/ttyTEST")
		assert.Contains(t, body, "<td>malformed</td><td>1</td>")
	})

	commands := []struct {
		name   string
		method string
		form   url.Values
		status int
	}{
		{"valid", http.MethodPost, url.Values{"command": {"TARE"}}, http.StatusOK},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range commands {
		t.Run("command "+tt.name, func(t *testing.T) {
			req := localHostRequest(tt.method, "/debug/ingest-command-api", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "TARE\n", port.Written())
}
