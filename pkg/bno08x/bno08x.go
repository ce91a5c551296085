package bno08x

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/angle"
	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/odometry"
)

const DefaultSerialDevice = "/dev/ttyAMA0"

const ReportFrequency = 100
const ReportInterval = time.Second / ReportFrequency

const packetLen = 19

var (
	ErrBadChecksum = errors.New("bad checksum")
	ErrLostSync    = errors.New("lost sync")
)

var syncBytes = []byte{0xaa, 0xaa}

// IMUReport is one UART-RVC frame. Angles are in hundredths of a degree.
type IMUReport struct {
	Time   time.Time
	Index  uint8
	Yaw    int16
	Pitch  int16
	Roll   int16
	XAccel int16
	YAccel int16
	ZAccel int16
}

func (i IMUReport) String() string {
	return fmt.Sprintf("[%02x] Y:%7.2f P:%7.2f R:%7.2f X:%7.2f Y:%7.2f Z:%7.2f",
		i.Index, float64(i.Yaw)/100.0, float64(i.Pitch)/100.0, float64(i.Roll)/100.0,
		float64(i.XAccel)/100.0, float64(i.YAccel)/100.0, float64(i.ZAccel)/100.0)
}

// YawDegrees is the raw sensor yaw, anti-clockwise positive.
func (i IMUReport) YawDegrees() float64 {
	return float64(i.Yaw) / 100.0
}

// parseReport decodes a frame that starts with the sync bytes.
func parseReport(buf []byte) (IMUReport, error) {
	if len(buf) < packetLen || !bytes.Equal(buf[:2], syncBytes) {
		return IMUReport{}, ErrLostSync
	}
	var checksum uint8
	for _, b := range buf[2 : packetLen-1] {
		checksum += b
	}
	if buf[packetLen-1] != checksum {
		return IMUReport{}, fmt.Errorf("%w: %x != %x", ErrBadChecksum, buf[packetLen-1], checksum)
	}
	return IMUReport{
		Index:  buf[2],
		Yaw:    int16(binary.LittleEndian.Uint16(buf[3:5])),
		Pitch:  int16(binary.LittleEndian.Uint16(buf[5:7])),
		Roll:   int16(binary.LittleEndian.Uint16(buf[7:9])),
		XAccel: int16(binary.LittleEndian.Uint16(buf[9:11])),
		YAccel: int16(binary.LittleEndian.Uint16(buf[11:13])),
		ZAccel: int16(binary.LittleEndian.Uint16(buf[13:15])),
	}, nil
}

type BNO08X struct {
	device string
	log    *zap.Logger

	lock       sync.Mutex
	lastReport IMUReport
	yawOffset  float64
}

var _ odometry.HeadingSensor = (*BNO08X)(nil)

func New(device string, log *zap.Logger) *BNO08X {
	if device == "" {
		device = DefaultSerialDevice
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BNO08X{
		device: device,
		log:    log,
	}
}

func (b *BNO08X) CurrentReport() IMUReport {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastReport
}

// YawDegrees returns the heading relative to the last Zero, clockwise
// positive, in (-180, 180].
func (b *BNO08X) YawDegrees() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return angle.FromFloat(-b.lastReport.YawDegrees() - b.yawOffset).Float()
}

// Zero makes the current heading read as 0.
func (b *BNO08X) Zero() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.yawOffset = -b.lastReport.YawDegrees()
}

// WaitForFirstReport blocks until a report has arrived or ctx is done.
func (b *BNO08X) WaitForFirstReport(ctx context.Context) error {
	lastPrint := time.Now()
	for b.CurrentReport().Time.IsZero() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(lastPrint) > time.Second {
			b.log.Info("Waiting for first reading from IMU...")
			lastPrint = time.Now()
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// LoopReadingReports reads reports until ctx is done, reopening the serial
// port whenever it fails.
func (b *BNO08X) LoopReadingReports(ctx context.Context) error {
	for ctx.Err() == nil {
		err := b.openAndLoop(ctx)
		if ctx.Err() != nil {
			break
		}
		b.log.Warn("BNO08X loop stopped; will retry", zap.Error(err))
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func (b *BNO08X) openAndLoop(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: 115200,
	}
	s, err := serial.Open(b.device, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", b.device, err)
	}
	return b.readReports(ctx, s)
}

// readReports closes r when it returns or when ctx is done, which unblocks a
// read from a port that has gone quiet.
func (b *BNO08X) readReports(ctx context.Context, r io.ReadCloser) error {
	var closeOnce sync.Once
	closePort := func() { closeOnce.Do(func() { _ = r.Close() }) }
	defer closePort()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-stop:
		}
	}()

	br := bufio.NewReader(r)
	buf := make([]byte, packetLen)
	for {
		if err := resync(ctx, br); err != nil {
			return err
		}
		b.log.Debug("In sync with packet stream")

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if _, err := io.ReadFull(br, buf); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("failed to read from serial: %w", err)
			}
			report, err := parseReport(buf)
			if err != nil {
				b.log.Warn("Bad packet, resyncing", zap.Error(err))
				break
			}
			report.Time = time.Now()
			b.setReport(report)
		}
	}
}

// resync discards bytes until the next pair of sync bytes.
func resync(ctx context.Context, br *bufio.Reader) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		buf, err := br.Peek(2)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read from serial: %w", err)
		}
		if bytes.Equal(buf, syncBytes) {
			return nil
		}
		if _, err := br.Discard(1); err != nil {
			return fmt.Errorf("failed to read from serial: %w", err)
		}
	}
}

func (b *BNO08X) setReport(report IMUReport) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.lastReport = report
}
