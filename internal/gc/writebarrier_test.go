package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteBarrierRecordsDirtyCards(t *testing.T) {
	wb := NewWriteBarrier(64)
	h := &Header{}
	wb.RecordWrite(h)

	cards := wb.GetAndClearDirtyCards()
	assert.Len(t, cards, 1)

	// A second read after clearing sees nothing new.
	assert.Empty(t, wb.GetAndClearDirtyCards())
}

func TestWriteBarrierInactiveRecordsNothing(t *testing.T) {
	wb := NewWriteBarrier(64)
	wb.SetActive(false)
	assert.False(t, wb.IsActive())

	wb.RecordWrite(&Header{})
	assert.Empty(t, wb.GetAndClearDirtyCards())
}

func TestWriteBarrierDefaultCardSize(t *testing.T) {
	wb := NewWriteBarrier(0)
	assert.Equal(t, uintptr(DefaultCardSize), wb.cardSize)
}
