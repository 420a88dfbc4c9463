package material

import (
	. "github.com/ianfab/variant-nnue/pkg/common"
)

// PieceValues are in centipawns; King is unused.
var PieceValues = [King + 1]int{Pawn: 100, Knight: 400, Bishop: 400, Rook: 600, Queen: 1200}

// EvaluationService scores a position by material only. Used as a stand-in
// evaluator when no network is loaded.
type EvaluationService struct{}

func NewEvaluationService() *EvaluationService {
	return &EvaluationService{}
}

func (e *EvaluationService) Evaluate(p *Position) int {
	var eval int
	for pt := Pawn; pt < King; pt++ {
		var bb = p.PiecesByType(pt)
		eval += PieceValues[pt] * (PopCount(bb&p.White) - PopCount(bb&p.Black))
	}
	if !p.WhiteMove {
		eval = -eval
	}
	return eval
}
