package shuffle

import (
	"context"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ianfab/variant-nnue/internal/sfen"
)

type Config struct {
	Files  []string
	Output string
	Format sfen.Format
	// records per temporary shard
	BufferSize int
	// directory for temporary shards, next to Output when empty
	TmpDir string
	Seed   int64
	// temporary shards written concurrently
	Threads int
}

func DefaultConfig() Config {
	return Config{
		Output:     "shuffled_sfen.bin",
		Format:     sfen.FormatBin,
		BufferSize: 20_000_000,
		Threads:    2,
	}
}

func (c *Config) normalize() error {
	if len(c.Files) == 0 {
		return errors.New("shuffle: no input files")
	}
	if c.Output == "" {
		return errors.New("shuffle: no output file")
	}
	if c.BufferSize <= 0 {
		return errors.Errorf("shuffle: bad buffer size %d", c.BufferSize)
	}
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.TmpDir == "" {
		c.TmpDir = filepath.Join(filepath.Dir(c.Output), "tmp")
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return nil
}

const readChunk = 4096

// Shuffle splits the input into shuffled shards of BufferSize records and
// merges the shards in random order weighted by their remaining records.
func Shuffle(ctx context.Context, config Config) (err error) {
	if err := config.normalize(); err != nil {
		return err
	}
	log.Printf("%+v", config)
	if err := os.MkdirAll(config.TmpDir, 0755); err != nil {
		return errors.Wrap(err, "shuffle: create tmp dir")
	}

	var shards []string
	defer func() {
		for _, shard := range shards {
			if removeErr := os.Remove(shard); removeErr != nil && !os.IsNotExist(removeErr) {
				err = multierror.Append(err, removeErr)
			}
		}
	}()

	var rnd = rand.New(rand.NewSource(config.Seed))
	var g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(config.Threads)
	var total int64
	var split = func(records []sfen.PackedSfenValue) {
		var name = filepath.Join(config.TmpDir, strconv.Itoa(len(shards))+".bin")
		shards = append(shards, name)
		total += int64(len(records))
		var seed = rnd.Int63()
		g.Go(func() error {
			var rnd = rand.New(rand.NewSource(seed))
			rnd.Shuffle(len(records), func(i, j int) {
				records[i], records[j] = records[j], records[i]
			})
			log.Println("shuffle", "write", name, "records", len(records))
			return writeAll(name, sfen.FormatBin, records)
		})
	}

	var buffer = make([]sfen.PackedSfenValue, 0, min(config.BufferSize, 1<<20))
	var readErr = forEachFile(gctx, config.Files, func(chunk []sfen.PackedSfenValue) {
		for len(chunk) > 0 {
			var n = min(len(chunk), config.BufferSize-len(buffer))
			buffer = append(buffer, chunk[:n]...)
			chunk = chunk[n:]
			if len(buffer) == config.BufferSize {
				split(buffer)
				buffer = make([]sfen.PackedSfenValue, 0, min(config.BufferSize, 1<<20))
			}
		}
	})
	if len(buffer) > 0 && readErr == nil {
		split(buffer)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if readErr != nil {
		return readErr
	}
	log.Println("shuffle", "shards", len(shards), "records", total)

	var counts = make([]int64, len(shards))
	for i, shard := range shards {
		var n, err = sfen.Count(shard)
		if err != nil {
			return err
		}
		counts[i] = n
	}
	return merge(ctx, shards, counts, config.Output, config.Format, rnd)
}

// ShuffleQuick merges the input files directly, picking the next record
// from a file chosen with probability proportional to its remaining count.
func ShuffleQuick(ctx context.Context, config Config) error {
	if err := config.normalize(); err != nil {
		return err
	}
	log.Printf("%+v", config)
	var counts = make([]int64, len(config.Files))
	for i, name := range config.Files {
		var n, err = sfen.Count(name)
		if err != nil {
			return err
		}
		counts[i] = n
	}
	return merge(ctx, config.Files, counts, config.Output, config.Format,
		rand.New(rand.NewSource(config.Seed)))
}

// ShuffleInMemory reads every record, shuffles them and writes them out.
func ShuffleInMemory(ctx context.Context, config Config) error {
	if err := config.normalize(); err != nil {
		return err
	}
	log.Printf("%+v", config)
	var records []sfen.PackedSfenValue
	var err = forEachFile(ctx, config.Files, func(chunk []sfen.PackedSfenValue) {
		records = append(records, chunk...)
	})
	if err != nil {
		return err
	}
	var rnd = rand.New(rand.NewSource(config.Seed))
	rnd.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
	log.Println("shufflem", "records", len(records))
	return writeAll(config.Output, config.Format, records)
}

func forEachFile(ctx context.Context, files []string, f func([]sfen.PackedSfenValue)) error {
	var buf = make([]sfen.PackedSfenValue, readChunk)
	for _, name := range files {
		var r, err = sfen.OpenReader(name)
		if err != nil {
			return err
		}
		for {
			if err := ctx.Err(); err != nil {
				r.Close()
				return err
			}
			var n, err = r.Read(buf)
			f(buf[:n])
			if err == io.EOF {
				break
			}
			if err != nil {
				r.Close()
				return errors.Wrap(err, name)
			}
		}
		if err := r.Close(); err != nil {
			return err
		}
	}
	return nil
}

func writeAll(name string, format sfen.Format, records []sfen.PackedSfenValue) error {
	var w, err = sfen.CreateWriter(name, format, false)
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		return multierror.Append(err, w.Close())
	}
	return w.Close()
}

func merge(ctx context.Context, files []string, counts []int64, output string,
	format sfen.Format, rnd *rand.Rand) (err error) {
	var readers = make([]sfen.Reader, len(files))
	defer func() {
		for _, r := range readers {
			if r != nil {
				if closeErr := r.Close(); closeErr != nil {
					err = multierror.Append(err, closeErr)
				}
			}
		}
	}()
	var remaining int64
	for i, name := range files {
		var r, err = sfen.OpenReader(name)
		if err != nil {
			return err
		}
		readers[i] = r
		remaining += counts[i]
	}

	w, err := sfen.CreateWriter(output, format, false)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	var one = make([]sfen.PackedSfenValue, 1)
	var out = make([]sfen.PackedSfenValue, 0, readChunk)
	var written int64
	for remaining > 0 {
		if len(out) == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var pick = rnd.Int63n(remaining)
		var i = 0
		for pick >= counts[i] {
			pick -= counts[i]
			i++
		}
		var n, readErr = readers[i].Read(one)
		if n == 0 {
			if readErr == nil || readErr == io.EOF {
				readErr = io.ErrUnexpectedEOF
			}
			log.Println("shuffle", "file", files[i], "short by", counts[i], "err", readErr)
			remaining -= counts[i]
			counts[i] = 0
			continue
		}
		counts[i]--
		remaining--
		out = append(out, one[0])
		if len(out) == cap(out) {
			if err := w.Write(out); err != nil {
				return err
			}
			written += int64(len(out))
			out = out[:0]
		}
	}
	if err := w.Write(out); err != nil {
		return err
	}
	written += int64(len(out))
	log.Println("shuffle", "output", output, "records", written)
	return nil
}
