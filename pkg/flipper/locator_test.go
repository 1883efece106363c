package flipper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFindDevice(t *testing.T) {
	ports := []DiscoveredPort{
		{Path: "/dev/ttyUSB0", VendorID: "1a86", ProductID: "7523"},
		{Path: "/dev/ttyACM1", VendorID: "0483", ProductID: "5740"},
		{Path: "/dev/ttyACM2", VendorID: "0483", ProductID: "5740"},
	}

	tests := []struct {
		name     string
		identity DeviceIdentity
		want     string
	}{
		{name: "Flipper", identity: FlipperIdentity, want: "/dev/ttyACM1"},
		{name: "Upper case identity", identity: DeviceIdentity{VendorID: "1A86", ProductID: "7523"}, want: "/dev/ttyUSB0"},
		{name: "Not found", identity: DeviceIdentity{VendorID: "ffff", ProductID: "0001"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLocator(tt.identity, func() ([]DiscoveredPort, error) { return ports, nil }, time.Millisecond, nil)
			got, err := l.FindDevice()
			if err != nil {
				t.Fatalf("FindDevice: %v", err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("ожидался nil, получено %v", got)
				}
				return
			}
			if got == nil || got.Path != tt.want {
				t.Errorf("получено %v, ожидалось %s", got, tt.want)
			}
		})
	}

	l := NewLocator(FlipperIdentity, func() ([]DiscoveredPort, error) { return ports, nil }, time.Millisecond, nil)
	all, _ := l.ListDevices()
	if len(all) != 2 {
		t.Errorf("ListDevices вернул %d портов", len(all))
	}

	l.Path = "/dev/ttyACM2"
	if got, _ := l.FindDevice(); got == nil || got.Path != "/dev/ttyACM2" {
		t.Errorf("с фиксированным путём получено %v", got)
	}
	l.Path = "/dev/ttyUSB0"
	if got, _ := l.FindDevice(); got != nil {
		t.Errorf("порт с чужим идентификатором не должен подходить: %v", got)
	}
}

func TestWaitForDevice(t *testing.T) {
	var calls atomic.Int32
	var logged atomic.Int32
	l := NewLocator(FlipperIdentity, func() ([]DiscoveredPort, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("enumeration failed")
		case 2:
			return nil, nil
		default:
			return []DiscoveredPort{testDevice}, nil
		}
	}, 5*time.Millisecond, func(string) { logged.Add(1) })

	got, err := l.WaitForDevice(context.Background())
	if err != nil {
		t.Fatalf("WaitForDevice: %v", err)
	}
	if got.Path != testDevice.Path {
		t.Errorf("получен порт %s", got.Path)
	}
	if calls.Load() != 3 {
		t.Errorf("опросов %d, ожидалось 3", calls.Load())
	}
	if logged.Load() != 1 {
		t.Errorf("ошибка перечисления должна логироваться")
	}
}

func TestWaitForDeviceCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	l := NewLocator(FlipperIdentity, func() ([]DiscoveredPort, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil, nil
	}, 5*time.Millisecond, nil)

	_, err := l.WaitForDevice(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("ожидалась ErrCancelled, получено %v", err)
	}

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after || after != 3 {
		t.Errorf("опросы продолжились после отмены: %d -> %d", after, calls.Load())
	}
}
