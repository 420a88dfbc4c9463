package convert

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ianfab/variant-nnue/internal/sfen"
)

type Config struct {
	Files  []string
	Output string
	Format sfen.Format
	// records outside [MinPly, MaxPly] are dropped by ToBin
	MinPly int
	MaxPly int
}

func DefaultConfig() Config {
	return Config{
		Format: sfen.FormatBin,
		MaxPly: 1 << 16,
	}
}

type Stats struct {
	Read    int64
	Written int64
	Skipped int64
}

// ToPlain writes the records of binary streams as text blocks.
func ToPlain(ctx context.Context, config Config) (stats Stats, err error) {
	var f, createErr = os.Create(config.Output)
	if createErr != nil {
		return stats, errors.Wrap(createErr, "convert_plain")
	}
	var w = bufio.NewWriter(f)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil {
			err = multierror.Append(err, flushErr)
		}
		if closeErr := f.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		log.Println("convert_plain", "output", config.Output, "read", stats.Read,
			"written", stats.Written, "skipped", stats.Skipped)
	}()

	var buf = make([]sfen.PackedSfenValue, 4096)
	for _, name := range config.Files {
		var r, err = sfen.OpenReader(name)
		if err != nil {
			return stats, err
		}
		for {
			if err := ctx.Err(); err != nil {
				r.Close()
				return stats, err
			}
			var n, readErr = r.Read(buf)
			for i := range buf[:n] {
				stats.Read++
				if err := sfen.WritePlain(w, &buf[i]); err != nil {
					if errors.Is(err, sfen.ErrIllegalPosition) || errors.Is(err, sfen.ErrIllegalMove) {
						stats.Skipped++
						continue
					}
					r.Close()
					return stats, err
				}
				stats.Written++
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				r.Close()
				return stats, errors.Wrap(readErr, name)
			}
		}
		if err := r.Close(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ToBin parses text blocks into a sample stream. Records with an illegal
// position or move are skipped.
func ToBin(ctx context.Context, config Config) (stats Stats, err error) {
	var w, createErr = sfen.CreateWriter(config.Output, config.Format, false)
	if createErr != nil {
		return stats, createErr
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		log.Println("convert_bin", "output", config.Output, "read", stats.Read,
			"written", stats.Written, "skipped", stats.Skipped)
	}()

	var out = make([]sfen.PackedSfenValue, 0, 4096)
	for _, name := range config.Files {
		if err := convertPlainFile(ctx, name, &config, &stats, func(v sfen.PackedSfenValue) error {
			out = append(out, v)
			if len(out) < cap(out) {
				return nil
			}
			var err = w.Write(out)
			out = out[:0]
			return err
		}); err != nil {
			return stats, err
		}
	}
	return stats, w.Write(out)
}

func convertPlainFile(ctx context.Context, name string, config *Config, stats *Stats,
	emit func(sfen.PackedSfenValue) error) error {
	var f, err = os.Open(name)
	if err != nil {
		return errors.Wrap(err, "convert_bin")
	}
	defer f.Close()

	var pr = sfen.NewPlainReader(bufio.NewReaderSize(f, 1<<20))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var v, err = pr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if errors.Is(err, sfen.ErrIllegalPosition) || errors.Is(err, sfen.ErrIllegalMove) {
				stats.Read++
				stats.Skipped++
				log.Println("convert_bin", "file", name, "skip", err)
				continue
			}
			return errors.Wrap(err, name)
		}
		stats.Read++
		if int(v.GamePly) < config.MinPly || int(v.GamePly) > config.MaxPly {
			stats.Skipped++
			continue
		}
		if err := emit(v); err != nil {
			return err
		}
		stats.Written++
	}
}
