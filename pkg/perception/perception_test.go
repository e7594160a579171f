package perception

import (
	"testing"
)

func TestDetectionGeometry(t *testing.T) {
	d := Detection{X: 0.2, Y: 0.4, W: 0.2, H: 0.1}
	cx, cy := d.Center()
	if cx != 0.3 {
		t.Errorf("Expected center x 0.3, got %v", cx)
	}
	if cy != 0.45 {
		t.Errorf("Expected center y 0.45, got %v", cy)
	}
	if area := d.Area(); area != 0.2*0.1 {
		t.Errorf("Expected area 0.02, got %v", area)
	}
}

func TestFilterClass(t *testing.T) {
	dets := []Detection{
		{ClassName: "person", Confidence: 0.9},
		{ClassName: "chair", Confidence: 0.8},
		{ClassName: "person", Confidence: 0.7},
	}
	people := FilterClass(dets, "person")
	if len(people) != 2 {
		t.Fatalf("Expected 2 people, got %d", len(people))
	}
	if !IsPerson(people[0].ClassName) {
		t.Error("Expected person class")
	}
	if got := FilterClass(dets, "dog"); got != nil {
		t.Errorf("Expected no dogs, got %v", got)
	}
}

func TestSelectBest(t *testing.T) {
	if got := SelectBest(nil); got != nil {
		t.Errorf("Expected nil for empty input, got %v", got)
	}

	single := []Detection{{ClassName: "person", Confidence: 0.5}}
	if got := SelectBest(single); got == nil || got.Confidence != 0.5 {
		t.Errorf("Expected the only detection, got %v", got)
	}

	dets := []Detection{
		{ClassName: "person", Confidence: 0.6, W: 0.1, H: 0.1},
		{ClassName: "person", Confidence: 0.9, W: 0.3, H: 0.3},
		{ClassName: "person", Confidence: 0.7, W: 0.05, H: 0.05},
	}
	best := SelectBest(dets)
	if best == nil || best.Confidence != 0.9 {
		t.Errorf("Expected the confident large detection, got %v", best)
	}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		name string
		dets []Detection
		want string
	}{
		{"empty", nil, "I don't see anything right now."},
		{"single", []Detection{{ClassName: "person"}}, "I can see a person."},
		{"article", []Detection{{ClassName: "orange"}}, "I can see an orange."},
		{
			"pair",
			[]Detection{{ClassName: "person"}, {ClassName: "chair"}, {ClassName: "chair"}},
			"I can see a person and 2 chairs.",
		},
		{
			"several people",
			[]Detection{{ClassName: "person"}, {ClassName: "person"}, {ClassName: "person"}},
			"I can see 3 people.",
		},
		{
			"list",
			[]Detection{{ClassName: "person"}, {ClassName: "cup"}, {ClassName: "tv"}},
			"I can see a person, a cup, and a tv.",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Summarize(c.dets); got != c.want {
				t.Errorf("Expected %q, got %q", c.want, got)
			}
		})
	}
}

func TestYOLOMissingModel(t *testing.T) {
	cfg := DefaultYOLOConfig()
	cfg.ModelPath = "/nonexistent/model.onnx"
	if _, err := NewYOLO(cfg, nil); err == nil {
		t.Error("Expected error for missing model file")
	}
}
