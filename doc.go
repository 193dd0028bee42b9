/*
Package faceshape is a face shape analysis library, which measures the facial proportions of a detected face
over a live sequence of frames and reports the most likely face shape together with a confidence score.

The face region is split into five horizontal bands, each band width being estimated from the intensity projection
of the grayscale pixels. The resulting proportions are classified either by a deterministic multi-criteria scorer
or by a pretrained random forest model, and the per-frame predictions are aggregated over a bounded history.

The package provides a command line interface, supporting various flags for live and batch analysis.
To check the supported commands type:

	$ faceshape --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"
		"github.com/esimov/faceshape"
	)

	func main() {
		m := faceshape.NewMeasurer(nil)
		measurements, err := m.Measure(box, frame)
		if err != nil {
			fmt.Printf("Error measuring the face region: %s", err.Error())
		}
		label := faceshape.NewHeuristicScorer(faceshape.DefaultScoringTable).Classify(measurements, nil)
		fmt.Println(label)
	}
*/
package faceshape
