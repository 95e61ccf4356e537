package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingTask struct {
	priority int
	ran      *int
}

func (t *countingTask) Run()              { *t.ran++ }
func (t *countingTask) GetPriority() int  { return t.priority }
func (t *countingTask) SetPriority(p int) { t.priority = p }

func TestTaskFuncRuns(t *testing.T) {
	called := false
	var tf TaskFunc = func() { called = true }
	tf.Run()
	assert.True(t, called)
}

func TestTaskFuncIsNotPrioritized(t *testing.T) {
	var tf TaskFunc = func() {}
	_, ok := Task(tf).(PrioritizedTask)
	assert.False(t, ok)
}

func TestNewPrioritizedTaskWrapsAndDelegates(t *testing.T) {
	ran := 0
	wrapped := NewPrioritizedTask(TaskFunc(func() { ran++ }), 7)

	assert.Equal(t, 7, wrapped.GetPriority())
	wrapped.SetPriority(9)
	assert.Equal(t, 9, wrapped.GetPriority())

	wrapped.Run()
	assert.Equal(t, 1, ran)
}
