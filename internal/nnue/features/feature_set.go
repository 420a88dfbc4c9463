package features

import (
	"sort"
	"strings"

	"github.com/ianfab/variant-nnue/pkg/common"
)

// FeatureSet concatenates features into one index space. Members are
// processed from the last to the first, so the last member starts at
// offset 0 and each earlier member is shifted by the dimensions after it.
type FeatureSet struct {
	members    []Feature
	offsets    []int
	dimensions int
	maxActive  int
	hash       uint32
	name       string
	triggers   []TriggerEvent
}

func NewFeatureSet(members ...Feature) *FeatureSet {
	if len(members) == 0 {
		panic("features: empty feature set")
	}
	var fs = &FeatureSet{
		members: members,
		offsets: make([]int, len(members)),
	}
	var names = make([]string, len(members))
	var seen = make(map[TriggerEvent]bool)
	for i := len(members) - 1; i >= 0; i-- {
		var m = members[i]
		fs.offsets[i] = fs.dimensions
		fs.dimensions += m.Dimensions()
		fs.maxActive += m.MaxActiveDimensions()
		if i == len(members)-1 {
			fs.hash = m.Hash()
		} else {
			fs.hash = m.Hash() ^ (fs.hash << 1) ^ (fs.hash >> 31)
		}
		names[i] = m.Name()
		if trigger := m.RefreshTrigger(); !seen[trigger] {
			seen[trigger] = true
			fs.triggers = append(fs.triggers, trigger)
		}
	}
	sort.Slice(fs.triggers, func(i, j int) bool { return fs.triggers[i] < fs.triggers[j] })
	fs.name = strings.Join(names, "+")
	return fs
}

func (fs *FeatureSet) Name() string                    { return fs.name }
func (fs *FeatureSet) Hash() uint32                    { return fs.hash }
func (fs *FeatureSet) Dimensions() int                 { return fs.dimensions }
func (fs *FeatureSet) MaxActiveDimensions() int        { return fs.maxActive }
func (fs *FeatureSet) RefreshTriggers() []TriggerEvent { return fs.triggers }
func (fs *FeatureSet) Members() []Feature              { return fs.members }

// AppendActiveIndices appends, for both colours, the indices of members whose
// refresh trigger equals trigger.
func (fs *FeatureSet) AppendActiveIndices(pos *common.Position, trigger TriggerEvent, active *[2][]int) {
	for perspective := range active {
		active[perspective] = fs.collectActive(pos, trigger, perspective, active[perspective])
	}
}

// AppendChangedIndices reports what the last move changed. When a
// perspective needs a refresh, reset is set and the full active set for
// trigger is appended to added.
func (fs *FeatureSet) AppendChangedIndices(pos *common.Position, dirty *DirtyPiece, trigger TriggerEvent,
	removed, added *[2][]int, reset *[2]bool) {
	for perspective := range added {
		switch trigger {
		case TriggerNone:
		case TriggerFriendKingMoved:
			if dirty.Num == 0 {
				continue
			}
			reset[perspective] = dirty.Piece[0] == common.MakePiece(common.King, perspective == common.SideWhite)
		case TriggerEnemyKingMoved:
			if dirty.Num == 0 {
				continue
			}
			reset[perspective] = dirty.Piece[0] == common.MakePiece(common.King, perspective != common.SideWhite)
		case TriggerAnyKingMoved:
			if dirty.Num == 0 {
				continue
			}
			var pieceType, _ = common.SplitPiece(dirty.Piece[0])
			reset[perspective] = pieceType == common.King
		case TriggerAnyPieceMoved:
			reset[perspective] = true
		default:
			panic("features: unknown trigger")
		}
		if reset[perspective] {
			added[perspective] = fs.collectActive(pos, trigger, perspective, added[perspective])
		} else {
			removed[perspective], added[perspective] = fs.collectChanged(pos, dirty, trigger, perspective,
				removed[perspective], added[perspective])
		}
	}
}

// ActiveIndices collects the full index set over every refresh trigger.
func (fs *FeatureSet) ActiveIndices(pos *common.Position) [2][]int {
	var active [2][]int
	for perspective := range active {
		active[perspective] = make([]int, 0, fs.maxActive)
	}
	for _, trigger := range fs.triggers {
		fs.AppendActiveIndices(pos, trigger, &active)
	}
	return active
}

func (fs *FeatureSet) collectActive(pos *common.Position, trigger TriggerEvent, perspective int, active []int) []int {
	for i := len(fs.members) - 1; i >= 0; i-- {
		var m = fs.members[i]
		if m.RefreshTrigger() != trigger {
			continue
		}
		var start = len(active)
		active = m.AppendActiveIndices(pos, perspective, active)
		shift(active[start:], fs.offsets[i])
	}
	return active
}

func (fs *FeatureSet) collectChanged(pos *common.Position, dirty *DirtyPiece, trigger TriggerEvent, perspective int,
	removed, added []int) ([]int, []int) {
	for i := len(fs.members) - 1; i >= 0; i-- {
		var m = fs.members[i]
		if m.RefreshTrigger() != trigger {
			continue
		}
		var startRemoved, startAdded = len(removed), len(added)
		removed, added = m.AppendChangedIndices(pos, dirty, perspective, removed, added)
		shift(removed[startRemoved:], fs.offsets[i])
		shift(added[startAdded:], fs.offsets[i])
	}
	return removed, added
}

func shift(indices []int, offset int) {
	if offset == 0 {
		return
	}
	for i := range indices {
		indices[i] += offset
	}
}
