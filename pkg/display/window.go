package display

import (
	"context"
	"log/slog"
	"runtime"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/internal/log"
)

// Keys that close the window.
const (
	KeyEscape = 27
	KeyQuit   = 'q'
)

// Window shows frames in a native OpenCV window.
type Window struct {
	title string
	box   *Mailbox
	delay int
	log   *slog.Logger

	// OnClose is called once when the user closes the window or presses
	// ESC or q.
	OnClose func()
}

// NewWindow returns a window sink. Nothing is shown until Run is called.
func NewWindow(title string) *Window {
	return &Window{
		title: title,
		box:   NewMailbox(),
		delay: 10,
		log:   log.Component("display").With("sink", "window"),
	}
}

// Present queues img for the next repaint.
func (w *Window) Present(img gocv.Mat) {
	w.box.Put(img)
}

// Run owns the native window until ctx is cancelled or the user closes it.
// Most GUI backends require it to be called from the main goroutine.
func (w *Window) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	win := gocv.NewWindow(w.title)
	defer win.Close()
	defer w.box.Close()

	w.log.Info("window opened", "title", w.title)

	shown := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		if m, ok := w.box.TryTake(); ok {
			if err := win.IMShow(m); err != nil {
				w.log.Warn("showing frame", "error", err)
			} else {
				shown = true
			}
			m.Close()
		}

		key := win.WaitKey(w.delay)
		if key == KeyEscape || key == KeyQuit || (shown && !win.IsOpen()) {
			w.log.Info("window closed by user")
			if w.OnClose != nil {
				w.OnClose()
			}
			return nil
		}
	}
}
