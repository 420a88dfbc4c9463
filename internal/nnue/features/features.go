package features

import (
	"github.com/ianfab/variant-nnue/pkg/common"
)

// TriggerEvent selects when a feature is recomputed from scratch instead of
// updated from the last move's dirty pieces. Values are ordered.
type TriggerEvent int

const (
	TriggerNone TriggerEvent = iota
	TriggerFriendKingMoved
	TriggerEnemyKingMoved
	TriggerAnyKingMoved
	TriggerAnyPieceMoved
)

var triggerNames = [...]string{"None", "FriendKingMoved", "EnemyKingMoved", "AnyKingMoved", "AnyPieceMoved"}

func (t TriggerEvent) String() string {
	if t >= 0 && int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return "Unknown"
}

// Side names the king a HalfKP feature is relative to.
type Side int

const (
	Friend Side = iota
	Enemy
)

// Feature is one input feature extractor. Indices are local to the feature;
// FeatureSet adds the offsets.
type Feature interface {
	Name() string
	Hash() uint32
	Dimensions() int
	MaxActiveDimensions() int
	RefreshTrigger() TriggerEvent
	AppendActiveIndices(pos *common.Position, perspective int, active []int) []int
	AppendChangedIndices(pos *common.Position, dirty *DirtyPiece, perspective int,
		removed, added []int) ([]int, []int)
}

func orient(perspective, sq int) int {
	if perspective == common.SideBlack {
		return sq ^ 63
	}
	return sq
}

func colourOf(side bool) int {
	if side {
		return common.SideWhite
	}
	return common.SideBlack
}
