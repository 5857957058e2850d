package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// listen starts a loopback listener that accepts and drains connections until
// the test ends.
func listen(t *testing.T) (string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 64)
				for {
					if _, err := conn.Read(buf); err != nil {
						conn.Close()
						return
					}
				}
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), uint16(addr.Port)
}

// closedPort returns a loopback port with no listener behind it.
func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()
	return port
}

func TestProbe_Success(t *testing.T) {
	host, port := listen(t)

	res := Probe(context.Background(), Request{
		DstHost: host,
		DstPort: port,
		Timeout: 2 * time.Second,
	})

	if res.Err != nil {
		t.Fatalf("Probe() error = %v", res.Err)
	}
	if !res.Success() {
		t.Error("Success() = false, want true")
	}
	if res.ConnectTime < 0 {
		t.Errorf("ConnectTime = %v, want >= 0", res.ConnectTime)
	}
	if res.CloseTime < 0 {
		t.Errorf("CloseTime = %v, want >= 0", res.CloseTime)
	}
	if res.LocalAddr == nil {
		t.Fatal("LocalAddr = nil, want local address")
	}
	if res.LocalAddr.Port == 0 {
		t.Error("LocalAddr.Port = 0, want OS-assigned port")
	}
	if res.Latency() != res.ConnectTime {
		t.Errorf("Latency() = %v, want %v", res.Latency(), res.ConnectTime)
	}
}

func TestProbe_Refused(t *testing.T) {
	port := closedPort(t)
	timeout := 2 * time.Second

	start := time.Now()
	res := Probe(context.Background(), Request{
		DstHost: "127.0.0.1",
		DstPort: port,
		Timeout: timeout,
	})
	elapsed := time.Since(start)

	if res.Err == nil {
		t.Fatal("Probe() error = nil, want connection refused")
	}
	if res.Success() {
		t.Error("Success() = true, want false")
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("Probe() took %v, want at most %v", elapsed, timeout)
	}
	if res.ConnectTime < 0 || res.ConnectTime > elapsed {
		t.Errorf("ConnectTime = %v, want within [0, %v]", res.ConnectTime, elapsed)
	}
	if res.CloseTime != Unmeasured {
		t.Errorf("CloseTime = %v, want Unmeasured", res.CloseTime)
	}
	if got := Classify(res.Err); got != KindRefused {
		t.Errorf("Classify() = %q, want %q", got, KindRefused)
	}
}

func TestProbe_Timeout(t *testing.T) {
	// TEST-NET-1 is not routed; where the network drops the SYN the dial
	// runs into the timeout.
	timeout := 200 * time.Millisecond

	start := time.Now()
	res := Probe(context.Background(), Request{
		DstHost: "192.0.2.1",
		DstPort: 9,
		Timeout: timeout,
	})
	elapsed := time.Since(start)

	if res.Err == nil {
		t.Fatal("Probe() error = nil, want timeout")
	}
	if kind := Classify(res.Err); kind != KindTimeout {
		t.Skipf("network answered instead of dropping the SYN: %v (%s)", res.Err, kind)
	}
	if res.ConnectTime < timeout*9/10 || res.ConnectTime > elapsed {
		t.Errorf("ConnectTime = %v, want about %v", res.ConnectTime, timeout)
	}
	if elapsed > timeout+time.Second {
		t.Errorf("Probe() took %v, want about %v", elapsed, timeout)
	}
	if res.CloseTime != Unmeasured {
		t.Errorf("CloseTime = %v, want Unmeasured", res.CloseTime)
	}
}

func TestNewDialer(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantLocal string
	}{
		{
			name: "no source",
			req:  Request{DstHost: "example.com", DstPort: 80, Timeout: time.Second},
		},
		{
			name: "host only",
			req:  Request{DstHost: "example.com", DstPort: 80, Timeout: time.Second, SrcHost: "127.0.0.1"},
		},
		{
			name:      "host and port",
			req:       Request{DstHost: "example.com", DstPort: 80, Timeout: time.Second, SrcHost: "127.0.0.1", SrcPort: 40000},
			wantLocal: "127.0.0.1:40000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := newDialer(tt.req)
			if err != nil {
				t.Fatalf("newDialer() error = %v", err)
			}
			// A negative delay disables parallel dual-stack dialing.
			if d.FallbackDelay >= 0 {
				t.Errorf("FallbackDelay = %v, want < 0", d.FallbackDelay)
			}
			if d.Timeout != tt.req.Timeout {
				t.Errorf("Timeout = %v, want %v", d.Timeout, tt.req.Timeout)
			}
			switch {
			case tt.wantLocal == "" && d.LocalAddr != nil:
				t.Errorf("LocalAddr = %v, want nil", d.LocalAddr)
			case tt.wantLocal != "" && (d.LocalAddr == nil || d.LocalAddr.String() != tt.wantLocal):
				t.Errorf("LocalAddr = %v, want %s", d.LocalAddr, tt.wantLocal)
			}
		})
	}
}

func TestProbe_DelayClose(t *testing.T) {
	host, port := listen(t)
	delay := 50 * time.Millisecond

	res := Probe(context.Background(), Request{
		DstHost:    host,
		DstPort:    port,
		Timeout:    2 * time.Second,
		DelayClose: delay,
	})

	if res.Err != nil {
		t.Fatalf("Probe() error = %v", res.Err)
	}
	if res.CloseTime < delay {
		t.Errorf("CloseTime = %v, want >= %v", res.CloseTime, delay)
	}
}

func TestProbe_DelayCloseCanceled(t *testing.T) {
	host, port := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	res := Probe(ctx, Request{
		DstHost:    host,
		DstPort:    port,
		Timeout:    2 * time.Second,
		DelayClose: 10 * time.Second,
	})

	if res.Err != nil {
		t.Fatalf("Probe() error = %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Probe() took %v, want early return on cancel", elapsed)
	}
	if res.CloseTime < 0 {
		t.Errorf("CloseTime = %v, want measured", res.CloseTime)
	}
}

func TestProbe_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Probe(ctx, Request{
		DstHost: "127.0.0.1",
		DstPort: closedPort(t),
		Timeout: time.Second,
	})

	if res.Err == nil {
		t.Fatal("Probe() error = nil, want canceled")
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Probe() error = %v, want context.Canceled", res.Err)
	}
	if got := Classify(res.Err); got != KindCanceled {
		t.Errorf("Classify() = %q, want %q", got, KindCanceled)
	}
}

func TestProbe_SingleSidedSourceSkipsBind(t *testing.T) {
	host, port := listen(t)

	res := Probe(context.Background(), Request{
		DstHost: host,
		DstPort: port,
		Timeout: 2 * time.Second,
		SrcPort: 1, // without SrcHost this must not be used
	})

	if res.Err != nil {
		t.Fatalf("Probe() error = %v", res.Err)
	}
	if res.LocalAddr == nil || res.LocalAddr.Port == 1 {
		t.Errorf("LocalAddr = %v, want OS-assigned port", res.LocalAddr)
	}
}

func TestProbe_BindResolveFailure(t *testing.T) {
	res := Probe(context.Background(), Request{
		DstHost: "127.0.0.1",
		DstPort: closedPort(t),
		Timeout: time.Second,
		SrcHost: "not a host name",
		SrcPort: 40000,
	})

	if res.Err == nil {
		t.Fatal("Probe() error = nil, want bind error")
	}
	if !strings.HasPrefix(res.Err.Error(), "bind ") {
		t.Errorf("Probe() error = %q, want bind prefix", res.Err)
	}
	if res.ConnectTime != Unmeasured {
		t.Errorf("ConnectTime = %v, want Unmeasured", res.ConnectTime)
	}
	if res.CloseTime != Unmeasured {
		t.Errorf("CloseTime = %v, want Unmeasured", res.CloseTime)
	}
}

func TestResult_Line(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{
			name: "success",
			res: Result{
				ConnectTime: 1234 * time.Microsecond,
				CloseTime:   10 * time.Microsecond,
				LocalAddr:   &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 50000},
			},
			want: "192.0.2.10:50000, example.com:80, conn_time: 0.001234",
		},
		{
			name: "failure with local address",
			res: Result{
				ConnectTime: 2 * time.Second,
				CloseTime:   Unmeasured,
				Err:         errors.New("i/o timeout"),
				LocalAddr:   &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 1024},
			},
			want: "192.0.2.10:1024, example.com:80, conn_time: 2.000000, ERROR: i/o timeout",
		},
		{
			name: "failure without local address",
			res: Result{
				ConnectTime: 500 * time.Microsecond,
				CloseTime:   Unmeasured,
				Err:         errors.New("connection refused"),
			},
			want: "example.com:80, conn_time: 0.000500, ERROR: connection refused",
		},
		{
			name: "connect never started",
			res: Result{
				ConnectTime: Unmeasured,
				CloseTime:   Unmeasured,
				Err:         errors.New("bind failed"),
			},
			want: "example.com:80, ERROR: bind failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Line("example.com", 80); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_Latency(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want time.Duration
	}{
		{"measured", Result{ConnectTime: 3 * time.Millisecond}, 3 * time.Millisecond},
		{"unmeasured", Result{ConnectTime: Unmeasured}, 0},
		{"zero", Result{ConnectTime: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Latency(); got != tt.want {
				t.Errorf("Latency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequest_Destination(t *testing.T) {
	tests := []struct {
		host string
		port uint16
		want string
	}{
		{"example.com", 443, "example.com:443"},
		{"192.0.2.1", 80, "192.0.2.1:80"},
		{"2001:db8::1", 22, "[2001:db8::1]:22"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			r := Request{DstHost: tt.host, DstPort: tt.port}
			if got := r.Destination(); got != tt.want {
				t.Errorf("Destination() = %q, want %q", got, tt.want)
			}
		})
	}
}
