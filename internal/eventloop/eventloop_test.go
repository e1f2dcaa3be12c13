package eventloop

import (
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime records which timer callbacks the loop fired.
type fakeRuntime struct {
	fired      []int
	microtasks int
	onFire     func(id int)
	fail       map[int]error
}

var timerID = regexp.MustCompile(`__timerCallbacks\[(\d+)\]`)

func (f *fakeRuntime) Eval(js string) error {
	m := timerID.FindStringSubmatch(js)
	if m == nil {
		return nil
	}
	id, _ := strconv.Atoi(m[1])
	f.fired = append(f.fired, id)
	if f.onFire != nil {
		f.onFire(id)
	}
	return f.fail[id]
}
func (f *fakeRuntime) EvalBool(string) (bool, error)  { return false, nil }
func (f *fakeRuntime) RegisterFunc(string, any) error { return nil }
func (f *fakeRuntime) RunMicrotasks()                 { f.microtasks++ }
func (f *fakeRuntime) Interrupt()                     {}
func (f *fakeRuntime) Close()                         {}

func withClock(el *EventLoop) *time.Time {
	now := time.Unix(1000, 0)
	el.now = func() time.Time { return now }
	return &now
}

func TestRunDueFiresInDeadlineOrder(t *testing.T) {
	el := New()
	now := withClock(el)

	late := el.RegisterTimer(30*time.Millisecond, false)
	early := el.RegisterTimer(10*time.Millisecond, false)
	el.RegisterTimer(time.Hour, false)

	next, ok := el.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Millisecond), next)

	rt := &fakeRuntime{}
	assert.Equal(t, 0, el.RunDue(rt, nil))

	*now = now.Add(50 * time.Millisecond)
	assert.Equal(t, 2, el.RunDue(rt, nil))
	assert.Equal(t, []int{early, late}, rt.fired)
	assert.Equal(t, 2, rt.microtasks)
	assert.True(t, el.HasPending())
}

func TestIntervalReschedules(t *testing.T) {
	el := New()
	now := withClock(el)
	id := el.RegisterTimer(time.Millisecond, true)

	next, _ := el.NextDeadline()
	assert.Equal(t, now.Add(minInterval), next, "interval clamped")

	rt := &fakeRuntime{}
	for i := 0; i < 3; i++ {
		*now = now.Add(minInterval)
		assert.Equal(t, 1, el.RunDue(rt, nil))
	}
	assert.Equal(t, []int{id, id, id}, rt.fired)

	el.ClearTimer(id)
	assert.False(t, el.HasPending())
}

func TestClearDuringBatch(t *testing.T) {
	el := New()
	now := withClock(el)
	first := el.RegisterTimer(0, false)
	second := el.RegisterTimer(0, true)

	rt := &fakeRuntime{onFire: func(id int) {
		if id == first {
			el.ClearTimer(second)
		}
	}}
	*now = now.Add(minInterval)
	assert.Equal(t, 1, el.RunDue(rt, nil))
	assert.Equal(t, []int{first}, rt.fired)
}

func TestRunDueReportsThrowingCallbacks(t *testing.T) {
	el := New()
	now := withClock(el)
	bad := el.RegisterTimer(0, false)
	good := el.RegisterTimer(time.Millisecond, false)

	rt := &fakeRuntime{fail: map[int]error{bad: errors.New("Error: boom")}}
	var failed []int
	*now = now.Add(minInterval)
	fired := el.RunDue(rt, func(id int, err error) {
		assert.EqualError(t, err, "Error: boom")
		failed = append(failed, id)
	})
	assert.Equal(t, 2, fired)
	assert.Equal(t, []int{bad, good}, rt.fired)
	assert.Equal(t, []int{bad}, failed)
}

func TestReset(t *testing.T) {
	el := New()
	el.RegisterTimer(time.Second, false)
	el.Reset()
	_, ok := el.NextDeadline()
	assert.False(t, ok)
	assert.Equal(t, 1, el.RegisterTimer(0, false))
}
