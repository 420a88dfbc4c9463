package learn

import (
	"io"
	"log"
	"math/rand"
	"sync"

	"github.com/ianfab/variant-nnue/internal/sfen"
)

// SfenReader streams training records from files to the workers. A
// background goroutine (Run) fills a pool of shuffled buffers; each worker
// drains its own buffer and takes the next one from the pool.
type SfenReader struct {
	files      []string
	readSize   int
	bufferSize int
	noShuffle  bool
	rnd        *rand.Rand

	mu         sync.Mutex
	cond       *sync.Cond
	pool       [][]sfen.PackedSfenValue
	buffers    [][]sfen.PackedSfenValue
	endOfFiles bool
	stop       bool
	totalRead  int64

	current sfen.Reader
}

func NewSfenReader(files []string, threads int, config *Config, rnd *rand.Rand) *SfenReader {
	var r = &SfenReader{
		files:      append([]string(nil), files...),
		readSize:   config.ReadSize,
		bufferSize: config.ThreadBufferSize,
		noShuffle:  config.NoShuffle,
		rnd:        rnd,
		buffers:    make([][]sfen.PackedSfenValue, threads),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Read returns the next record for worker. It blocks while the pool is
// being refilled and returns false at end of stream.
func (r *SfenReader) Read(worker int) (sfen.PackedSfenValue, bool) {
	var buf = r.buffers[worker]
	if len(buf) == 0 {
		r.mu.Lock()
		for len(r.pool) == 0 && !r.endOfFiles && !r.stop {
			r.cond.Wait()
		}
		if len(r.pool) == 0 || r.stop {
			r.mu.Unlock()
			return sfen.PackedSfenValue{}, false
		}
		buf = r.pool[0]
		r.pool = r.pool[1:]
		r.totalRead += int64(len(buf))
		r.mu.Unlock()
		r.cond.Broadcast()
	}
	var v = buf[len(buf)-1]
	r.buffers[worker] = buf[:len(buf)-1]
	return v, true
}

// Stop ends the stream for all readers.
func (r *SfenReader) Stop() {
	r.mu.Lock()
	r.stop = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

func (r *SfenReader) TotalRead() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalRead
}

// openNext opens the next readable file. Unreadable or empty files are skipped.
func (r *SfenReader) openNext() bool {
	if r.current != nil {
		r.current.Close()
		r.current = nil
	}
	for len(r.files) > 0 {
		var name = r.files[0]
		r.files = r.files[1:]
		var reader, err = sfen.OpenReader(name)
		if err != nil {
			log.Println("sfen reader", "file", name, "err", err)
			continue
		}
		if !reader.HasMore() {
			reader.Close()
			continue
		}
		log.Println("sfen reader", "open", name)
		r.current = reader
		return true
	}
	return false
}

// Run reads until the files are exhausted or Stop is called.
func (r *SfenReader) Run() error {
	defer func() {
		if r.current != nil {
			r.current.Close()
		}
		r.mu.Lock()
		r.endOfFiles = true
		r.mu.Unlock()
		r.cond.Broadcast()
	}()

	var more = r.openNext()
	var maxBuffers = r.readSize / r.bufferSize
	for more {
		r.mu.Lock()
		for !r.stop && len(r.pool) >= maxBuffers {
			r.cond.Wait()
		}
		var stop = r.stop
		r.mu.Unlock()
		if stop {
			return nil
		}

		var records = make([]sfen.PackedSfenValue, r.readSize)
		var n = 0
		for n < len(records) {
			var read, err = r.current.Read(records[n:])
			n += read
			if err != nil {
				if err != io.EOF {
					log.Println("sfen reader", "err", err)
				}
				if more = r.openNext(); !more {
					log.Println("sfen reader", "end of files")
					break
				}
			}
		}
		records = records[:n]

		if !r.noShuffle {
			r.rnd.Shuffle(len(records), func(i, j int) {
				records[i], records[j] = records[j], records[i]
			})
		}

		var buffers [][]sfen.PackedSfenValue
		for len(records) > 0 {
			var size = min(r.bufferSize, len(records))
			buffers = append(buffers, records[:size:size])
			records = records[size:]
		}
		r.mu.Lock()
		r.pool = append(r.pool, buffers...)
		r.mu.Unlock()
		r.cond.Broadcast()
	}
	return nil
}
