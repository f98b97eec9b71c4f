package device

import (
	"context"
	"image"
	"testing"
)

func TestRecorder(t *testing.T) {
	var seen int
	r := &Recorder{OnTap: func(x, y int) { seen++ }}

	_ = r.Tap(context.Background(), 10, 20)
	_ = r.Tap(context.Background(), 30, 40)

	taps := r.Taps()
	if len(taps) != 2 || taps[0] != (Tap{10, 20}) || taps[1] != (Tap{30, 40}) {
		t.Errorf("unexpected taps %v", taps)
	}
	if seen != 2 {
		t.Errorf("OnTap called %d times, want 2", seen)
	}
	taps[0].X = 99
	if r.Taps()[0].X != 10 {
		t.Error("Taps must return a copy")
	}
}

func TestADB_Args(t *testing.T) {
	a := NewADB("", "emulator-5554", nil)
	if a.Binary != "adb" {
		t.Errorf("Binary = %q", a.Binary)
	}
	got := a.args("shell", "input", "tap", "1", "2")
	want := []string{"-s", "emulator-5554", "shell", "input", "tap", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("args = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
	if n := len(NewADB("adb", "", nil).args("devices")); n != 1 {
		t.Errorf("no serial: got %d args", n)
	}
}

func TestADB_MissingBinary(t *testing.T) {
	a := NewADB("/nonexistent/adb-binary", "", nil)
	if err := a.Tap(context.Background(), 1, 1); err == nil {
		t.Error("expected error from missing binary")
	}
}

func TestStaticFrames(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	got, err := StaticFrames{Image: img}.Capture(context.Background())
	if err != nil || got != img {
		t.Errorf("Capture = %v, %v", got, err)
	}
}
