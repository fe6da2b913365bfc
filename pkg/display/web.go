package display

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facelabel/internal/log"
)

// FrameBroadcaster receives encoded JPEG frames.
type FrameBroadcaster interface {
	BroadcastBinary(data []byte)
}

// Web encodes frames to JPEG and hands them to a broadcaster.
type Web struct {
	out     FrameBroadcaster
	quality int
	box     *Mailbox
	log     *slog.Logger
}

// NewWeb returns a sink that publishes JPEG frames at the given quality.
func NewWeb(out FrameBroadcaster, quality int) *Web {
	if quality < 1 || quality > 100 {
		quality = 85
	}
	return &Web{
		out:     out,
		quality: quality,
		box:     NewMailbox(),
		log:     log.Component("display").With("sink", "web"),
	}
}

// Present queues img for encoding.
func (w *Web) Present(img gocv.Mat) {
	w.box.Put(img)
}

// Run encodes and publishes frames until ctx is cancelled.
func (w *Web) Run(ctx context.Context) error {
	defer w.box.Close()

	for {
		m, err := w.box.Take(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}

		data, err := w.encode(m)
		m.Close()
		if err != nil {
			w.log.Warn("jpeg encode failed", "error", err)
			continue
		}
		w.out.BroadcastBinary(data)
	}
}

func (w *Web) encode(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{int(gocv.IMWriteJpegQuality), w.quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
