package npu

import "errors"

// FakeEngine is a test double that returns scripted invocation results.
type FakeEngine struct {
	// Script contains results returned by successive Invoke calls.
	// When exhausted, Invoke keeps returning the last entry.
	Script []Results

	// InvokeError, if set, will be returned by Invoke().
	InvokeError error

	// BeginError, if set, will be returned by Begin().
	BeginError error

	// Invocations counts Invoke calls.
	Invocations int

	// Begun tracks if Begin was called.
	Begun bool

	index   int
	current Results
}

// NewFakeEngine creates a FakeEngine with the given script.
func NewFakeEngine(script ...Results) *FakeEngine {
	return &FakeEngine{Script: script}
}

// Begin records the call.
func (f *FakeEngine) Begin() error {
	f.Begun = true
	return f.BeginError
}

// Invoke advances the script.
func (f *FakeEngine) Invoke() error {
	f.Invocations++
	f.current = Results{}
	if f.InvokeError != nil {
		return f.InvokeError
	}
	if len(f.Script) == 0 {
		return errors.New("no results configured")
	}
	f.current = f.Script[f.index]
	if f.index < len(f.Script)-1 {
		f.index++
	}
	return nil
}

func (f *FakeEngine) Boxes() []Box          { return f.current.Boxes }
func (f *FakeEngine) Classes() []Class      { return f.current.Classes }
func (f *FakeEngine) Points() []Point       { return f.current.Points }
func (f *FakeEngine) Keypoints() []Keypoint { return f.current.Keypoints }
