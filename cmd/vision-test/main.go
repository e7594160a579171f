// Vision test - runs the YOLO detector once over a webcam frame or an
// image file and prints what it found.
//
// Usage:
//
//	vision-test -image photo.jpg
//	vision-test -camera 0 -model models/yolov8n.onnx
package main

import (
	"flag"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/asadbey/turtlebot3-automation/internal/log"
	"github.com/asadbey/turtlebot3-automation/pkg/perception"
)

func main() {
	var (
		model      = flag.String("model", "models/yolov8n.onnx", "Path to the YOLOv8 ONNX model")
		image      = flag.String("image", "", "JPEG file to detect on (empty = grab a webcam frame)")
		camera     = flag.Int("camera", 0, "Webcam device id when no image is given")
		confidence = flag.Float64("confidence", 0.5, "Minimum detection confidence")
	)
	flag.Parse()

	log.Init("info")

	cfg := perception.DefaultYOLOConfig()
	cfg.ModelPath = *model
	cfg.Confidence = float32(*confidence)

	det, err := perception.NewYOLO(cfg, log.L())
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer det.Close()

	frame, err := grabFrame(*image, *camera)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🖼️  Frame: %d KB\n", len(frame)/1024)

	dets, err := det.Detect(frame)
	if err != nil {
		fmt.Printf("❌ detect: %v\n", err)
		os.Exit(1)
	}

	if len(dets) == 0 {
		fmt.Println("Nothing detected.")
		return
	}
	for i, d := range dets {
		cx, cy := d.Center()
		fmt.Printf("%2d. %-12s %.0f%%  center=(%.2f, %.2f) size=%.2fx%.2f\n",
			i+1, d.ClassName, d.Confidence*100, cx, cy, d.W, d.H)
	}
	fmt.Printf("\n🗣️  %s\n", perception.Summarize(dets))
}

// grabFrame reads the image file, or captures a single webcam frame
// when no file is given.
func grabFrame(path string, device int) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}

	cam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	defer cam.Close()

	img := gocv.NewMat()
	defer img.Close()
	if ok := cam.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("camera %d returned no frame", device)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
