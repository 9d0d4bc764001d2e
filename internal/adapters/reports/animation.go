package reports

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"

	"github.com/icza/mjpeg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	frameRate     = 4
	stripHeight   = 96
	labelHeight   = 24
	minFrameWidth = 160
	maxCellWidth  = 32
)

// renderAnimation draws one frame per day: a strip with a column per cell,
// shaded from white to red by the cell's infected share relative to the run
// peak. The MJPEG writer only writes to files, so frames go through a temp
// file.
func renderAnimation(days []dayReports) ([]byte, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("render animation: no reports")
	}
	cells := len(days[0].Cells)
	cellWidth := maxCellWidth
	if cells > 0 && cells*cellWidth < minFrameWidth {
		cellWidth = (minFrameWidth + cells - 1) / cells
	}
	width := max(cells*cellWidth, minFrameWidth)
	width += width % 2
	height := stripHeight + labelHeight

	peak := 0.0
	for _, d := range days {
		for _, c := range d.Cells {
			peak = max(peak, c.Report.Infected)
		}
	}

	tmp, err := os.CreateTemp("", "geopandemic-*.avi")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(path) }()

	aw, err := mjpeg.New(path, int32(width), int32(height), frameRate)
	if err != nil {
		return nil, fmt.Errorf("create mjpeg writer: %w", err)
	}
	var buf bytes.Buffer
	for _, d := range days {
		img := drawFrame(d, width, height, cellWidth, peak)
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			_ = aw.Close()
			return nil, fmt.Errorf("encode frame %d: %w", d.Day, err)
		}
		if err := aw.AddFrame(buf.Bytes()); err != nil {
			_ = aw.Close()
			return nil, fmt.Errorf("add frame %d: %w", d.Day, err)
		}
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("close mjpeg writer: %w", err)
	}
	return os.ReadFile(path)
}

func drawFrame(d dayReports, width, height, cellWidth int, peak float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	for i, c := range d.Cells {
		level := 0.0
		if peak > 0 {
			level = c.Report.Infected / peak
		}
		shade := uint8(255 * (1 - level))
		rect := image.Rect(i*cellWidth, labelHeight, (i+1)*cellWidth-1, height)
		draw.Draw(img, rect, &image.Uniform{C: color.RGBA{R: 255, G: shade, B: shade, A: 255}}, image.Point{}, draw.Src)
	}
	addLabel(img, 4, labelHeight-8, fmt.Sprintf("day %d", d.Day))
	return img
}

func addLabel(img *image.RGBA, x, y int, label string) {
	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	dr.DrawString(label)
}
