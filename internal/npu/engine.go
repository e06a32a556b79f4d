// Package npu talks to the AI vision module. The module runs the detection
// model; this package only triggers invocations and decodes the results.
package npu

// Box is one detected object.
type Box struct {
	X, Y, W, H int
	Score      int
	Target     int
}

// Class is one classification result.
type Class struct {
	Score  int
	Target int
}

// Point is one detected point.
type Point struct {
	X, Y   int
	Score  int
	Target int
}

// Keypoint is a box with its associated points.
type Keypoint struct {
	Box    Box
	Points []Point
}

// Results holds the output of one invocation.
type Results struct {
	Boxes     []Box
	Classes   []Class
	Points    []Point
	Keypoints []Keypoint
}

// Engine is an AI module that can run the model once per Invoke. The result
// accessors return the output of the most recent successful Invoke.
type Engine interface {
	Begin() error
	Invoke() error
	Boxes() []Box
	Classes() []Class
	Points() []Point
	Keypoints() []Keypoint
}
