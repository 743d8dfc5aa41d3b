package audio

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"RPGMixer/model"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	lru "github.com/hashicorp/golang-lru/v2"
)

// constStreamer yields n frames of 1.0 and supports seeking.
type constStreamer struct {
	n, pos int
	closed bool
}

func (s *constStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.n {
		return 0, false
	}
	k := len(samples)
	if rem := s.n - s.pos; k > rem {
		k = rem
	}
	for i := 0; i < k; i++ {
		samples[i] = [2]float64{1, 1}
	}
	s.pos += k
	return k, true
}

func (s *constStreamer) Err() error { return nil }

func (s *constStreamer) Len() int { return s.n }

func (s *constStreamer) Position() int { return s.pos }

func (s *constStreamer) Close() error {
	s.closed = true
	return nil
}

func (s *constStreamer) Seek(p int) error {
	s.pos = p
	return nil
}

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error { c.closed = true; return nil }

var _ io.Closer = (*nopCloser)(nil)

const testRate = beep.SampleRate(1000)

func newTestHandle(frames int) (*beepHandle, *constStreamer, *nopCloser) {
	src := &nopCloser{}
	s := &constStreamer{n: frames}
	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	h := newBeepHandle(1, "t1", src, s, format, testRate, &sync.Mutex{})
	h.gain.set(1)
	return h, s, src
}

func TestBeepHandleSilentUntilPlay(t *testing.T) {
	h, s, _ := newTestHandle(100)
	buf := make([][2]float64, 10)

	n, ok := h.Stream(buf)
	if n != 10 || !ok {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
	if buf[0][0] != 0 || s.pos != 0 {
		t.Error("unplayed handle must output silence without consuming the source")
	}

	h.Play()
	h.Stream(buf)
	if buf[0][0] != 1 || s.pos != 10 {
		t.Errorf("playing handle should stream the source, got %v pos %d", buf[0][0], s.pos)
	}
}

func TestBeepHandlePauseHoldsPosition(t *testing.T) {
	h, s, _ := newTestHandle(100)
	buf := make([][2]float64, 10)

	h.Play()
	h.Stream(buf)
	h.Pause()
	if h.Playing() || !h.ctrl.Paused {
		t.Fatal("paused handle reports playing")
	}
	h.Stream(buf)
	if s.pos != 10 || buf[0][0] != 0 {
		t.Errorf("paused stream advanced: pos %d sample %v", s.pos, buf[0][0])
	}

	h.Play()
	h.Stream(buf)
	if s.pos != 20 || buf[0][0] != 1 {
		t.Errorf("resume: pos %d sample %v", s.pos, buf[0][0])
	}
}

func TestBeepHandleNaturalEndFiresOnce(t *testing.T) {
	h, _, _ := newTestHandle(15)
	ended := make(chan struct{}, 4)
	h.onEnd = func() { ended <- struct{}{} }
	h.Play()

	buf := make([][2]float64, 10)
	h.Stream(buf)
	h.Stream(buf)
	h.Stream(buf)

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnd not called")
	}
	select {
	case <-ended:
		t.Fatal("OnEnd called twice")
	case <-time.After(50 * time.Millisecond):
	}
	if h.Playing() {
		t.Error("ended handle must not report playing")
	}

	// Play after a natural end restarts from the top.
	h.Play()
	if !h.Playing() || h.Position() != 0 {
		t.Errorf("replay: playing=%v position=%v", h.Playing(), h.Position())
	}
}

func TestBeepHandleLoopRewinds(t *testing.T) {
	h, s, _ := newTestHandle(8)
	h.loop = true
	called := false
	h.onEnd = func() { called = true }
	h.Play()

	buf := make([][2]float64, 20)
	h.Stream(buf)
	for i, frame := range buf {
		if frame[0] != 1 {
			t.Fatalf("frame %d silent in loop mode", i)
		}
	}
	if s.pos != 4 {
		t.Errorf("source position = %d, want 4 after wrapping twice", s.pos)
	}
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Error("looping handle must not report an end")
	}
}

func TestBeepHandleFadeAppliesGain(t *testing.T) {
	h, _, _ := newTestHandle(1000)
	h.Play()
	h.Fade(0, 1, 10*time.Millisecond) // 10 frames at 1 kHz

	buf := make([][2]float64, 20)
	h.Stream(buf)
	if math.Abs(buf[4][0]-0.5) > 1e-9 {
		t.Errorf("frame 4 gain = %v, want 0.5", buf[4][0])
	}
	if buf[19][0] != 1 {
		t.Errorf("gain after fade = %v, want 1", buf[19][0])
	}
	if h.Volume() != 1 {
		t.Errorf("Volume() = %v", h.Volume())
	}

	h.SetVolume(0.25)
	h.Stream(buf)
	if buf[0][0] != 0.25 {
		t.Errorf("SetVolume should snap, got %v", buf[0][0])
	}
}

func TestBeepHandleSeekAndRelease(t *testing.T) {
	h, s, src := newTestHandle(2000)
	if err := h.Seek(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if s.pos != 500 {
		t.Errorf("seek position = %d, want 500", s.pos)
	}
	if err := h.Seek(time.Hour); err != nil || s.pos != 1999 {
		t.Errorf("seek past end should clamp, pos=%d err=%v", s.pos, err)
	}
	if h.Duration() != 2*time.Second {
		t.Errorf("Duration() = %v", h.Duration())
	}

	h.Release()
	h.Release()
	if !s.closed || !src.closed {
		t.Error("Release must close decoder and source")
	}
	if n, ok := h.Stream(make([][2]float64, 4)); n != 0 || ok {
		t.Error("released handle must drain from the mixer")
	}
	if err := h.Seek(0); err != ErrReleased {
		t.Errorf("Seek after release = %v, want ErrReleased", err)
	}
}

type countingOpener struct {
	Opener
	opens int
}

func (o *countingOpener) Open(ctx context.Context, locator string) (io.ReadSeekCloser, error) {
	o.opens++
	return o.Opener.Open(ctx, locator)
}

func writeWAV(t *testing.T, dir, name string, frames int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, &constStreamer{n: frames}, format); err != nil {
		t.Fatal(err)
	}
}

func TestBeepBackendCachesDecodedEffects(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "boom.wav", 100)
	writeWAV(t, dir, "theme.wav", 100)

	cache, err := lru.New[string, *beep.Buffer](4)
	if err != nil {
		t.Fatal(err)
	}
	opener := &countingOpener{Opener: FileOpener{Root: dir}}
	var attached int
	b := &BeepBackend{
		opener:  opener,
		rate:    testRate,
		effects: cache,
		locker:  &sync.Mutex{},
		play:    func(beep.Streamer) { attached++ },
	}

	boom := model.Track{ID: "boom", URL: "boom.wav", Type: model.TrackSFX}
	for i := 0; i < 3; i++ {
		h, err := b.Open(boom, Options{Volume: 1})
		if err != nil {
			t.Fatal(err)
		}
		if h.Duration() != 100*time.Millisecond {
			t.Errorf("effect duration = %v", h.Duration())
		}
		h.Release()
	}
	if opener.opens != 1 {
		t.Errorf("effect opened %d times, want 1", opener.opens)
	}

	theme := model.Track{ID: "theme", URL: "theme.wav", Type: model.TrackMusic}
	for i := 0; i < 2; i++ {
		h, err := b.Open(theme, Options{})
		if err != nil {
			t.Fatal(err)
		}
		h.Release()
	}
	if opener.opens != 3 {
		t.Errorf("music must stream from source each time, opens = %d", opener.opens)
	}
	if attached != 5 {
		t.Errorf("attached %d streamers to the mixer", attached)
	}
}

func TestBeepBackendRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	b := &BeepBackend{opener: FileOpener{Root: dir}, rate: testRate, locker: &sync.Mutex{}, play: func(beep.Streamer) {}}
	if _, err := b.Open(model.Track{ID: "n", URL: "notes.txt"}, Options{}); err == nil {
		t.Error("expected an error for an unsupported file")
	}
}
