package gensfen

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ianfab/variant-nnue/internal/sfen"
)

const (
	// records per worker buffer handed to the writer
	writeBufferSize = 5000
	// flushes between status lines
	statusOutputPeriod = 40
)

// SfenWriter collects per worker buffers and writes them from one goroutine.
type SfenWriter struct {
	name      string
	format    sfen.Format
	saveEvery int64

	mu       sync.Mutex
	cond     *sync.Cond
	buffers  [][]sfen.PackedSfenValue
	pool     [][]sfen.PackedSfenValue
	finished bool

	out            sfen.Writer
	written        int64
	writtenCurrent int64
	batches        int
	start          time.Time
}

// NewSfenWriter creates name+ext. After saveEvery records output rolls over
// to name_N+ext.
func NewSfenWriter(name string, format sfen.Format, threads int, saveEvery int64) (*SfenWriter, error) {
	var out, err = sfen.CreateWriter(name+format.Ext(), format, false)
	if err != nil {
		return nil, err
	}
	var w = &SfenWriter{
		name:      name,
		format:    format,
		saveEvery: saveEvery,
		buffers:   make([][]sfen.PackedSfenValue, threads),
		out:       out,
		start:     time.Now(),
	}
	w.cond = sync.NewCond(&w.mu)
	return w, nil
}

// Write buffers one record of the given worker.
func (w *SfenWriter) Write(worker int, v sfen.PackedSfenValue) {
	var buf = w.buffers[worker]
	if buf == nil {
		buf = make([]sfen.PackedSfenValue, 0, writeBufferSize)
	}
	buf = append(buf, v)
	if len(buf) >= writeBufferSize {
		w.push(buf)
		buf = nil
	}
	w.buffers[worker] = buf
}

// Finalize hands over what is left in the worker's buffer.
func (w *SfenWriter) Finalize(worker int) {
	if buf := w.buffers[worker]; len(buf) != 0 {
		w.push(buf)
	}
	w.buffers[worker] = nil
}

func (w *SfenWriter) push(buf []sfen.PackedSfenValue) {
	w.mu.Lock()
	w.pool = append(w.pool, buf)
	w.mu.Unlock()
	w.cond.Signal()
}

// Close lets Run return once the pool is drained.
func (w *SfenWriter) Close() {
	w.mu.Lock()
	w.finished = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *SfenWriter) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Run writes buffers until Close is called and nothing is pending.
func (w *SfenWriter) Run() (err error) {
	defer func() {
		if w.out == nil {
			return
		}
		if closeErr := w.out.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		w.status()
	}()
	for {
		w.mu.Lock()
		for len(w.pool) == 0 && !w.finished {
			w.cond.Wait()
		}
		var buffers = w.pool
		w.pool = nil
		var finished = w.finished
		w.mu.Unlock()

		for _, buf := range buffers {
			if err := w.flush(buf); err != nil {
				return err
			}
		}
		if finished && len(buffers) == 0 {
			return nil
		}
	}
}

func (w *SfenWriter) flush(buf []sfen.PackedSfenValue) error {
	if err := w.out.Write(buf); err != nil {
		return errors.Wrap(err, "sfen writer")
	}
	w.mu.Lock()
	w.written += int64(len(buf))
	w.mu.Unlock()
	w.writtenCurrent += int64(len(buf))

	if w.writtenCurrent >= w.saveEvery {
		w.writtenCurrent = 0
		var n = w.written / w.saveEvery
		var name = w.name + "_" + strconv.FormatInt(n, 10) + w.format.Ext()
		var closeErr = w.out.Close()
		w.out = nil
		out, err := sfen.CreateWriter(name, w.format, true)
		if err != nil {
			return multierror.Append(closeErr, err)
		}
		w.out = out
		if closeErr != nil {
			return closeErr
		}
		log.Println("sfen writer", "file", name)
	}

	w.batches++
	if w.batches%statusOutputPeriod == 0 {
		w.status()
	}
	return nil
}

func (w *SfenWriter) status() {
	var written = w.Written()
	var elapsed = time.Since(w.start).Seconds()
	log.Println("sfen writer",
		"written", written,
		"per second", int64(float64(written)/(elapsed+1e-3)))
}
