package engine

import . "github.com/ianfab/variant-nnue/pkg/common"

const historyLimit = 1 << 14

// historyTable scores quiet moves by side, from and to square.
type historyTable [2][64][64]int32

func (h *historyTable) Read(white bool, m Move) int {
	return int(h[colorOf(white)][m.From()][m.To()])
}

// Update rewards the quiet move that failed high and penalizes the quiets
// tried before it.
func (h *historyTable) Update(white bool, tried []Move, best Move, depth int) {
	var bonus = Min(depth*depth, 256)
	var table = &h[colorOf(white)]
	for _, m := range tried {
		if m == best {
			age(&table[m.From()][m.To()], bonus)
			return
		}
		age(&table[m.From()][m.To()], -bonus)
	}
}

func (h *historyTable) Clear() {
	*h = historyTable{}
}

// age moves v towards +-historyLimit; |32*bonus| < historyLimit keeps it in range.
func age(v *int32, bonus int) {
	var delta = 32 * bonus
	var abs = delta
	if abs < 0 {
		abs = -abs
	}
	*v += int32(delta - int(*v)*abs/historyLimit)
}

func colorOf(white bool) int {
	if white {
		return 0
	}
	return 1
}
