// Command gen-detlog generates sample detection logs (JSON Lines) for
// testing replay and tuning.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/sightline-data/facetrack/internal/detect"
)

func main() {
	output := flag.String("o", "sample.jsonl", "output path")
	frames := flag.Int("n", 300, "number of frames")
	subjects := flag.Int("subjects", 4, "number of synthetic faces")
	seed := flag.Int64("seed", 1, "random seed")
	dropout := flag.Float64("dropout", 0.05, "per-frame detector miss probability")
	flag.Parse()

	gen := detect.NewSyntheticSource(*seed)
	gen.FrameCount = *frames
	gen.SubjectCount = *subjects
	gen.DropoutRate = *dropout

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()

	var batch []detect.Frame
	ctx := context.Background()
	for {
		frame, err := gen.Next(ctx)
		if err != nil {
			break
		}
		batch = append(batch, frame)
	}
	if err := detect.WriteJSONL(f, batch); err != nil {
		log.Fatalf("failed to write log: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames, %d subjects)", *output, len(batch), *subjects)
}
