package sfen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

type Format int

const (
	FormatBin Format = iota
	FormatPack
)

// BlockSize is the maximum number of records in one pack shard.
const BlockSize = 1 << 16

const shardSuffix = ".bin.zst"

func ParseFormat(s string) (Format, error) {
	switch s {
	case "bin":
		return FormatBin, nil
	case "pack":
		return FormatPack, nil
	}
	return FormatBin, errors.Errorf("sfen: unknown format %q", s)
}

func (f Format) String() string {
	if f == FormatPack {
		return "pack"
	}
	return "bin"
}

// Ext is the file name extension of the format.
func (f Format) Ext() string {
	return "." + f.String()
}

type Reader interface {
	// Read fills buf and returns the number of records read.
	// At end of stream it returns 0, io.EOF.
	Read(buf []PackedSfenValue) (int, error)
	HasMore() bool
	Close() error
}

type Writer interface {
	Write(records []PackedSfenValue) error
	Close() error
}

// OpenReader opens a flat file, or a pack directory of zstd shards.
func OpenReader(path string) (Reader, error) {
	var fi, err = os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sfen stream")
	}
	if fi.IsDir() {
		return openPackReader(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open sfen stream")
	}
	return &binReader{file: f, r: bufio.NewReaderSize(f, 1<<20)}, nil
}

// CreateWriter creates or, with appendMode set, extends a sample stream.
func CreateWriter(path string, format Format, appendMode bool) (Writer, error) {
	if format == FormatPack {
		return createPackWriter(path, appendMode)
	}
	var flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	var f, err = os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "create sfen stream")
	}
	return &binWriter{file: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// Count returns the number of records in a stream without decoding them.
func Count(path string) (int64, error) {
	var fi, err = os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !fi.IsDir() {
		return fi.Size() / RecordSize, nil
	}
	var r, err2 = openPackReader(path)
	if err2 != nil {
		return 0, err2
	}
	defer r.Close()
	var total int64
	for _, shard := range r.shards {
		var data, err = r.decodeShard(shard)
		if err != nil {
			return 0, err
		}
		total += int64(len(data) / RecordSize)
	}
	return total, nil
}

type binReader struct {
	file *os.File
	r    *bufio.Reader
	rec  [RecordSize]byte
}

func (br *binReader) Read(buf []PackedSfenValue) (int, error) {
	var n = 0
	for n < len(buf) {
		var _, err = io.ReadFull(br.r, br.rec[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrap(err, "read sfen record")
		}
		buf[n].get(br.rec[:])
		n++
	}
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (br *binReader) HasMore() bool {
	var _, err = br.r.Peek(1)
	return err == nil
}

func (br *binReader) Close() error {
	return br.file.Close()
}

type binWriter struct {
	file *os.File
	w    *bufio.Writer
	rec  [RecordSize]byte
}

func (bw *binWriter) Write(records []PackedSfenValue) error {
	for i := range records {
		records[i].put(bw.rec[:])
		if _, err := bw.w.Write(bw.rec[:]); err != nil {
			return errors.Wrap(err, "write sfen record")
		}
	}
	return nil
}

func (bw *binWriter) Close() error {
	var result error
	if err := bw.w.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := bw.file.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func shardName(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%06d%s", index, shardSuffix))
}

func listShards(dir string) ([]string, error) {
	var entries, err = os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), shardSuffix) {
			result = append(result, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(result)
	return result, nil
}

// nextShardIndex is one past the highest numbered shard, so appending never
// reuses the name of an existing shard when the pack has gaps.
func nextShardIndex(shards []string) int {
	var next = 0
	for _, shard := range shards {
		var index, err = strconv.Atoi(strings.TrimSuffix(filepath.Base(shard), shardSuffix))
		if err == nil && index >= next {
			next = index + 1
		}
	}
	return next
}

type packReader struct {
	shards  []string
	decoder *zstd.Decoder
	data    []byte
	offset  int
}

func openPackReader(dir string) (*packReader, error) {
	var shards, err = listShards(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list pack shards")
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &packReader{shards: shards, decoder: decoder}, nil
}

func (pr *packReader) decodeShard(path string) ([]byte, error) {
	var compressed, err = os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read pack shard")
	}
	data, err := pr.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "decode pack shard %v", path)
	}
	if len(data)%RecordSize != 0 {
		return nil, errors.Errorf("pack shard %v: truncated record", path)
	}
	return data, nil
}

func (pr *packReader) fill() error {
	for pr.offset >= len(pr.data) && len(pr.shards) > 0 {
		var data, err = pr.decodeShard(pr.shards[0])
		pr.shards = pr.shards[1:]
		if err != nil {
			return err
		}
		pr.data = data
		pr.offset = 0
	}
	return nil
}

func (pr *packReader) Read(buf []PackedSfenValue) (int, error) {
	var n = 0
	for n < len(buf) {
		if err := pr.fill(); err != nil {
			return n, err
		}
		if pr.offset >= len(pr.data) {
			break
		}
		buf[n].get(pr.data[pr.offset:])
		pr.offset += RecordSize
		n++
	}
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (pr *packReader) HasMore() bool {
	return pr.offset < len(pr.data) || len(pr.shards) > 0
}

func (pr *packReader) Close() error {
	pr.decoder.Close()
	return nil
}

type packWriter struct {
	dir     string
	next    int
	encoder *zstd.Encoder
	block   []byte
}

func createPackWriter(dir string, appendMode bool) (*packWriter, error) {
	if !appendMode {
		if err := os.RemoveAll(dir); err != nil {
			return nil, errors.Wrap(err, "create pack")
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create pack")
	}
	var shards, err = listShards(dir)
	if err != nil {
		return nil, errors.Wrap(err, "create pack")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &packWriter{
		dir:     dir,
		next:    nextShardIndex(shards),
		encoder: encoder,
		block:   make([]byte, 0, BlockSize*RecordSize),
	}, nil
}

func (pw *packWriter) Write(records []PackedSfenValue) error {
	var rec [RecordSize]byte
	for i := range records {
		records[i].put(rec[:])
		pw.block = append(pw.block, rec[:]...)
		if len(pw.block) == BlockSize*RecordSize {
			if err := pw.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (pw *packWriter) flush() error {
	if len(pw.block) == 0 {
		return nil
	}
	var compressed = pw.encoder.EncodeAll(pw.block, nil)
	var name = shardName(pw.dir, pw.next)
	if err := os.WriteFile(name, compressed, 0644); err != nil {
		return errors.Wrap(err, "write pack shard")
	}
	pw.next++
	pw.block = pw.block[:0]
	return nil
}

func (pw *packWriter) Close() error {
	var result error
	if err := pw.flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := pw.encoder.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}
