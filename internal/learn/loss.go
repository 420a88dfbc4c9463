package learn

import (
	"math"

	"github.com/ianfab/variant-nnue/internal/sfen"
)

const lossEpsilon = 1e-6

// winningPercentage maps a centipawn score to an expected result in [0, 1].
func (c *Config) winningPercentage(value float64, ply int) float64 {
	if c.UseWDL {
		return winningPercentageWDL(value, ply)
	}
	return sigmoid(value * c.WinningProbabilityCoefficient)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// winRateModel is the win rate in per mille for a score at a game ply.
func winRateModel(value float64, ply int) float64 {
	var as = [...]float64{-3.68389304, 30.07065921, -60.52878723, 149.53378557}
	var bs = [...]float64{-2.0181857, 15.85685038, -29.83452023, 47.59078827}
	var m = math.Min(240, float64(ply)) / 64
	var a = ((as[0]*m+as[1])*m+as[2])*m + as[3]
	var b = ((bs[0]*m+bs[1])*m+bs[2])*m + bs[3]
	var x = math.Max(-1000, math.Min(1000, value))
	return 1000 / (1 + math.Exp((a-x)/b))
}

func winningPercentageWDL(value float64, ply int) float64 {
	const total = 1000.0
	var w = winRateModel(value, ply)
	var l = winRateModel(-value, ply)
	var d = total - w - l
	return (w + 0.5*d) / total
}

func (c *Config) scaledSignal(signal float64) float64 {
	var normalized = (signal - c.SrcScoreMinValue) / (c.SrcScoreMaxValue - c.SrcScoreMinValue)
	return normalized*(c.DestScoreMaxValue-c.DestScoreMinValue) + c.DestScoreMinValue
}

// teacherP is the expected result of the teacher score.
func (c *Config) teacherP(teacher float64, ply int) float64 {
	return c.winningPercentage(c.scaledSignal(teacher), ply)
}

func (c *Config) lambda(teacher float64) float64 {
	if math.Abs(teacher) >= c.LambdaLimit {
		return c.Lambda2
	}
	return c.Lambda
}

// gameT is the game result as an expected result: loss 0, draw 0.5, win 1.
func gameT(result int8) float64 {
	return float64(int(result)+1) * 0.5
}

func (c *Config) crossEntropy(p, shallow float64, ply int) float64 {
	var q = c.winningPercentage(shallow, ply)
	return -p*math.Log(q) - (1-p)*math.Log(1-q)
}

// crossEntropyGrad differentiates numerically and rescales to the sigmoid case.
func (c *Config) crossEntropyGrad(p, shallow float64, ply int) float64 {
	var y1 = c.crossEntropy(p, shallow, ply)
	var y2 = c.crossEntropy(p, shallow+lossEpsilon, ply)
	return (y2 - y1) / lossEpsilon / c.WinningProbabilityCoefficient
}

// calcGrad is the gradient of the loss with respect to the shallow score,
// up to a constant factor.
func (c *Config) calcGrad(teacher, shallow float64, psv *sfen.PackedSfenValue) float64 {
	var ply = int(psv.GamePly)
	var p = c.teacherP(teacher, ply)
	var t = gameT(psv.GameResult)
	var lambda = c.lambda(teacher)
	if c.UseWDL {
		return lambda*c.crossEntropyGrad(p, shallow, ply) + (1-lambda)*c.crossEntropyGrad(t, shallow, ply)
	}
	var q = c.winningPercentage(shallow, ply)
	return lambda*(q-p) + (1-lambda)*(q-t)
}

const (
	ceEval = iota
	ceWin
	ceTotal
	entropyEval
	entropyWin
	entropyTotal
	numLossTerms
)

// lossTerms returns the cross entropies of the shallow score against the
// teacher score, the game result and their lambda mix, then the entropies
// of those three targets.
func (c *Config) lossTerms(teacher, shallow float64, psv *sfen.PackedSfenValue) [numLossTerms]float64 {
	var ply = int(psv.GamePly)
	var q = c.winningPercentage(shallow, ply)
	var p = c.teacherP(teacher, ply)
	var t = gameT(psv.GameResult)
	var lambda = c.lambda(teacher)
	var m = (1-lambda)*t + lambda*p

	var xent = func(target, x float64) float64 {
		return -target*math.Log(x+lossEpsilon) - (1-target)*math.Log(1-x+lossEpsilon)
	}
	var result [numLossTerms]float64
	result[ceEval] = xent(p, q)
	result[ceWin] = xent(t, q)
	result[ceTotal] = xent(m, q)
	result[entropyEval] = xent(p, p)
	result[entropyWin] = xent(t, t)
	result[entropyTotal] = xent(m, m)
	return result
}
