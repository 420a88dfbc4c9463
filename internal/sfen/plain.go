package sfen

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	. "github.com/ianfab/variant-nnue/pkg/common"
)

// WritePlain writes one record as a text block:
//
//	fen <fen>
//	move <uci>
//	score <cp>
//	ply <n>
//	result <-1|0|1>
//	e
func WritePlain(w io.Writer, v *PackedSfenValue) error {
	var p, err = v.Position()
	if err != nil {
		return err
	}
	move, err := DecodeMove(&p, v.Move)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "fen %v\nmove %v\nscore %d\nply %d\nresult %d\ne\n",
		p.String(), move, v.Score, v.GamePly, v.GameResult)
	return err
}

// PlainReader parses text blocks written by WritePlain.
type PlainReader struct {
	scanner *bufio.Scanner
	line    int
}

func NewPlainReader(r io.Reader) *PlainReader {
	return &PlainReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next record. The position and move are validated.
// At end of input it returns io.EOF.
func (pr *PlainReader) Next() (PackedSfenValue, error) {
	var result PackedSfenValue
	var (
		p       Position
		hasFen  bool
		moveLAN string
	)
	for pr.scanner.Scan() {
		pr.line++
		var line = strings.TrimSpace(pr.scanner.Text())
		if line == "" {
			continue
		}
		var key, value, _ = strings.Cut(line, " ")
		switch key {
		case "fen":
			var err error
			p, err = NewPositionFromFEN(value)
			if err != nil {
				return result, pr.discard(errors.Wrap(ErrIllegalPosition, err.Error()))
			}
			hasFen = true
		case "move":
			moveLAN = value
		case "score":
			var n, err = strconv.Atoi(value)
			if err != nil {
				return result, pr.discard(err)
			}
			result.Score = int16(Max(-32767, Min(32767, n)))
		case "ply":
			var n, err = strconv.Atoi(value)
			if err != nil {
				return result, pr.discard(err)
			}
			result.GamePly = uint16(n)
		case "result":
			var n, err = strconv.Atoi(value)
			if err != nil {
				return result, pr.discard(err)
			}
			if n < ResultLoss || n > ResultWin {
				return result, pr.discard(errors.Errorf("bad result %d", n))
			}
			result.GameResult = int8(n)
		case "e":
			if !hasFen {
				return result, pr.errorf(errors.New("record without fen"))
			}
			var move = p.ParseMoveLAN(moveLAN)
			if move == MoveEmpty {
				return result, pr.errorf(errors.Wrap(ErrIllegalMove, moveLAN))
			}
			result.Sfen = Pack(&p)
			result.Move = EncodeMove(move)
			return result, nil
		default:
			return result, pr.discard(errors.Errorf("unknown key %q", key))
		}
	}
	if err := pr.scanner.Err(); err != nil {
		return result, err
	}
	if hasFen {
		return result, pr.errorf(io.ErrUnexpectedEOF)
	}
	return result, io.EOF
}

// Line is the number of the last line consumed.
func (pr *PlainReader) Line() int {
	return pr.line
}

func (pr *PlainReader) errorf(err error) error {
	return errors.Wrapf(err, "line %d", pr.line)
}

// discard skips the rest of the current block so that Next can resume
// at the following one.
func (pr *PlainReader) discard(err error) error {
	err = pr.errorf(err)
	for pr.scanner.Scan() {
		pr.line++
		if strings.TrimSpace(pr.scanner.Text()) == "e" {
			break
		}
	}
	return err
}
