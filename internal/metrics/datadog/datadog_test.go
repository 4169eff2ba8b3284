package datadog

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"insurance-dq/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend(Config{}) error = nil, want non-nil")
	}
}

func TestTagsSorted(t *testing.T) {
	tests := []struct {
		name string
		in   metrics.Labels
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "sorted", in: metrics.Labels{"step": "load", "job": "dq"}, want: []string{"job:dq", "step:load"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("tags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestZeroBackendIsNoop(t *testing.T) {
	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestCountReachesAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "dq."})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"dataset": "policies", "kind": "loaded"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	want := "dq." + metrics.RecordsTotal + ":7|c|#dataset:policies,kind:loaded"
	buf := make([]byte, 65536)
	var seen []string
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("no packet containing %q; got %q (last error %v)", want, seen, err)
		}
		got := string(buf[:n])
		if strings.Contains(got, want) {
			return
		}
		seen = append(seen, got)
	}
}
