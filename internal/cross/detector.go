package cross

import (
	"github.com/shopspring/decimal"

	"beanScope/internal/model"
	"beanScope/internal/store"
)

// Direction of a price move through the threshold.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Detect reports whether moving from old to new crosses threshold. Landing
// on the threshold counts as a cross in the direction of travel; leaving it
// does not, so a pass through the threshold is counted once.
func Detect(old, new, threshold decimal.Decimal) (Direction, bool) {
	before := old.Sub(threshold).Sign()
	after := new.Sub(threshold).Sign()
	if before == 0 || before == after {
		return "", false
	}
	if before < 0 {
		return Up, true
	}
	return Down, true
}

// Record detects a cross of token's price and persists it. It returns nil
// when nothing crossed. token is mutated and must be saved by the caller.
func Record(tx *store.Tx, token *model.Token, old, new, threshold decimal.Decimal, meta model.EventMeta) *model.Cross {
	dir, ok := Detect(old, new, threshold)
	if !ok {
		return nil
	}

	// Crosses within one block share an id; the counter still sees each one.
	id := model.CrossID(token.ID, meta.Timestamp)

	var since uint64
	if token.LastCross > 0 && meta.Timestamp > token.LastCross {
		since = meta.Timestamp - token.LastCross
	}
	c := &model.Cross{
		ID:                 id,
		Token:              token.ID,
		Direction:          string(dir),
		Above:              dir == Up,
		Price:              new,
		PreviousPrice:      old,
		Block:              meta.BlockNumber,
		Timestamp:          meta.Timestamp,
		TimeSinceLastCross: since,
		CrossNumber:        token.Crosses,
	}
	token.Crosses++
	token.LastCross = meta.Timestamp
	tx.Save(model.KindCross, id, c)
	return c
}
