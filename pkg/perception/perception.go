// Package perception turns camera frames into object detections.
//
// A Detector finds COCO-class objects in a JPEG frame; the Observer
// feeds it from the camera topic at a bounded rate and keeps the most
// recent result for commands like "what do you see" and for the follow
// controller.
package perception

import (
	"fmt"
	"strings"
)

// Detection is one detected object. Coordinates are normalized to the
// frame, with X and Y the top-left corner.
type Detection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

// Center returns the center point of the bounding box.
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the normalized area of the bounding box.
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector is the inference backend.
type Detector interface {
	// Detect finds objects in a JPEG frame.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases model resources.
	Close() error
}

// COCOClasses contains the 80 COCO class names in model order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// IsPerson reports whether the class is a person.
func IsPerson(className string) bool {
	return className == "person"
}

// FilterClass returns the detections of one class.
func FilterClass(dets []Detection, className string) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.ClassName == className {
			out = append(out, d)
		}
	}
	return out
}

// SelectBest picks the strongest detection by confidence and size.
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}
	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}

// Summarize renders detections as a spoken-style sentence, for example
// "I can see a person, 2 chairs, and a cup."
func Summarize(dets []Detection) string {
	if len(dets) == 0 {
		return "I don't see anything right now."
	}

	counts := make(map[string]int)
	var order []string
	for _, d := range dets {
		if counts[d.ClassName] == 0 {
			order = append(order, d.ClassName)
		}
		counts[d.ClassName]++
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, describeCount(name, counts[name]))
	}

	switch len(parts) {
	case 1:
		return "I can see " + parts[0] + "."
	case 2:
		return "I can see " + parts[0] + " and " + parts[1] + "."
	default:
		return "I can see " + strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1] + "."
	}
}

func describeCount(name string, n int) string {
	if n == 1 {
		article := "a"
		switch name[0] {
		case 'a', 'e', 'i', 'o', 'u':
			article = "an"
		}
		return article + " " + name
	}
	if name == "person" {
		return fmt.Sprintf("%d people", n)
	}
	return fmt.Sprintf("%d %ss", n, name)
}
