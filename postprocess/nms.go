package postprocess

import "sort"

// NMS performs greedy Non-Maximum Suppression over the candidate results.
//
// Candidates are visited in descending confidence order; equal confidences
// break ties by original index so the output is reproducible for identical
// inputs. Each visit keeps the highest-scoring remaining candidate and
// suppresses every remaining box whose IoU with it reaches iouThreshold.
//
// Arguments:
//   - results: Candidate detections in any order.
//   - iouThreshold: Overlap at or above which a lower-scoring box is suppressed.
//
// Returns:
//   - []int: Kept indices into results, in selection order. Never contains
//     duplicates, and every pair of kept boxes has IoU below the threshold.
func NMS(results []Result, iouThreshold float32) []int {
	n := len(results)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return results[order[i]].Score > results[order[j]].Score
	})

	kept := make([]int, 0, n)
	suppressed := make([]bool, n)

	for _, idx := range order {
		if suppressed[idx] {
			continue
		}
		kept = append(kept, idx)
		suppressed[idx] = true

		for _, other := range order {
			if suppressed[other] {
				continue
			}
			if results[idx].Box.IoU(results[other].Box) >= iouThreshold {
				suppressed[other] = true
			}
		}
	}

	return kept
}

// Apply runs NMS and materializes the surviving results in selection order.
func Apply(results []Result, iouThreshold float32) []Result {
	kept := NMS(results, iouThreshold)
	if kept == nil {
		return nil
	}
	filtered := make([]Result, 0, len(kept))
	for _, idx := range kept {
		filtered = append(filtered, results[idx])
	}
	return filtered
}
