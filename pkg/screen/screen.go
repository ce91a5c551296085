package screen

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/tunable"
)

const (
	DefaultDevice = "/dev/fb1"

	Size          = 128
	frameBytes    = Size * Size * 2
	refreshPeriod = 500 * time.Millisecond
	lineHeight    = 14
)

// LoopUpdatingScreen draws the table onto the framebuffer until ctx is done,
// then blanks the screen. A missing framebuffer is logged and ignored.
func LoopUpdatingScreen(ctx context.Context, device string, table *tunable.Table, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if device == "" {
		device = DefaultDevice
	}
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		log.Info("Failed to open screen, ignoring", zap.String("device", device), zap.Error(err))
		return
	}
	defer f.Close()

	ticker := time.NewTicker(refreshPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var buf [frameBytes]byte
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(buf[:])
			return
		case <-ticker.C:
		}

		buf := toRGB565(Render(table.Snapshot()))
		if _, err := f.Seek(0, 0); err != nil {
			log.Warn("Screen failure", zap.Error(err))
			return
		}
		for i := 0; i < Size; i++ {
			if _, err := f.Write(buf[i*Size*2 : (i+1)*Size*2]); err != nil {
				log.Warn("Screen failure", zap.Error(err))
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
	}
}

// Render draws one "name value" line per entry, as many as fit.
func Render(values []tunable.Value) image.Image {
	dc := gg.NewContext(Size, Size)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawString("ODOMETRY", 4, lineHeight)
	dc.DrawLine(4, lineHeight+3, Size-4, lineHeight+3)
	dc.Stroke()

	y := float64(2*lineHeight + 4)
	for _, v := range values {
		if y > Size {
			break
		}
		dc.DrawString(v.Name, 4, y)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", v.Value), Size-4, y, 1, 0)
		y += lineHeight
	}
	return dc.Image()
}

// toRGB565 packs img into the panel's column-major little-endian format.
func toRGB565(img image.Image) []byte {
	buf := make([]byte, frameBytes)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(Size-1-y)*2+x*Size*2+1] = (rb << 3) | (gb >> 3)
			buf[(Size-1-y)*2+x*Size*2] = bb | (gb << 5)
		}
	}
	return buf
}
