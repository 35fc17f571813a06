package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithTimeoutAppliesQueryTimeout(t *testing.T) {
	db := &DB{queryTimeout: 2 * time.Second}

	ctx, cancel := db.withTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

func TestWithTimeoutKeepsEarlierDeadline(t *testing.T) {
	db := &DB{queryTimeout: time.Hour}
	parent, cancelParent := context.WithTimeout(context.Background(), time.Second)
	defer cancelParent()

	ctx, cancel := db.withTimeout(parent)
	defer cancel()
	want, _ := parent.Deadline()
	got, _ := ctx.Deadline()
	assert.Equal(t, want, got)
}

func TestWithTimeoutZeroLeavesContext(t *testing.T) {
	db := &DB{}
	ctx, cancel := db.withTimeout(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)
}
