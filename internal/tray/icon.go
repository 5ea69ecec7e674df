package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var (
	iconOnce sync.Once
	iconData []byte
)

// icon returns a 32x32 PNG ring used as the tray icon.
func icon() []byte {
	iconOnce.Do(func() {
		const size = 32
		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		fg := color.NRGBA{R: 0x1f, G: 0x6f, B: 0xeb, A: 0xff}
		c := float64(size-1) / 2
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx, dy := float64(x)-c, float64(y)-c
				d := dx*dx + dy*dy
				if d <= 15*15 && d >= 9*9 || d <= 4*4 {
					img.Set(x, y, fg)
				}
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			iconData = buf.Bytes()
		}
	})
	return iconData
}
