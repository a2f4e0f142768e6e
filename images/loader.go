package images

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NumberedFrame is a frame loaded from disk together with its sequence
// number, parsed from a "frame-<n>.<ext>" file name. Files without a parsable
// number get -1 and sort first in name order.
type NumberedFrame struct {
	Path   string
	Number int
	Frame  *Frame
}

// LoadDirectory decodes every supported image file in dir into BGR frames,
// ordered by frame number. Useful for replaying a captured frame sequence
// through the detection pipeline.
//
// Arguments:
//   - dir: Directory path containing .jpg, .jpeg or .png files.
//
// Returns:
//   - []NumberedFrame: Decoded frames in sequence order.
//   - error: Error when the directory cannot be read or a file cannot be decoded.
func LoadDirectory(dir string) ([]NumberedFrame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading frame directory %s", dir)
	}

	var frames []NumberedFrame
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		frame, err := loadFrame(path)
		if err != nil {
			return nil, err
		}
		frames = append(frames, NumberedFrame{
			Path:   path,
			Number: frameNumber(entry.Name(), ext),
			Frame:  frame,
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Number != frames[j].Number {
			return frames[i].Number < frames[j].Number
		}
		return frames[i].Path < frames[j].Path
	})
	return frames, nil
}

func loadFrame(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return FrameFromImage(img, 3)
}

// frameNumber extracts the sequence number from "frame-<n>.<ext>" names.
func frameNumber(name, ext string) int {
	trimmed := strings.TrimSuffix(name, ext)
	trimmed = strings.TrimPrefix(trimmed, "frame-")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1
	}
	return n
}
