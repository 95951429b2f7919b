package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	ADS1292R driver: power up, register programming and
 *		continuous read.
 *
 * Description:	The chip is wired as:
 *
 *			SPI	mode 1, chip select handled by spidev.
 *			PWDN	output, low = power down / reset.
 *			START	output, high = convert.
 *			DRDY	input, goes low when a frame is waiting.
 *
 *		Nothing in the signal chain depends on this file.  It is
 *		just one FrameSource.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Commands.
const (
	ADS_WAKEUP     = 0x02
	ADS_STANDBY    = 0x04
	ADS_RESET      = 0x06
	ADS_START      = 0x08
	ADS_STOP       = 0x0A
	ADS_RDATAC     = 0x10
	ADS_SDATAC     = 0x11
	ADS_RDATA      = 0x12
	ADS_RREG       = 0x20
	ADS_WREG       = 0x40
	ADS_DUMMY_BYTE = 0xFF
)

// Registers.
const (
	REG_ID        = 0x00
	REG_CONFIG1   = 0x01
	REG_CONFIG2   = 0x02
	REG_LOFF      = 0x03
	REG_CH1SET    = 0x04
	REG_CH2SET    = 0x05
	REG_RLD_SENS  = 0x06
	REG_LOFF_SENS = 0x07
	REG_LOFF_STAT = 0x08
	REG_RESP1     = 0x09
	REG_RESP2     = 0x0A
	REG_GPIO      = 0x0B
)

// RegisterMask says which bits of a register we may set and which ones
// the datasheet says must always be 1.
type RegisterMask struct {
	Preserve byte
	Force    byte
}

// RegisterMasks lists the registers with reserved bits.  Registers not
// listed are written as given.
var RegisterMasks = map[byte]RegisterMask{
	REG_CONFIG1:   {Preserve: 0x87, Force: 0x00},
	REG_CONFIG2:   {Preserve: 0xFB, Force: 0x80},
	REG_LOFF:      {Preserve: 0xFD, Force: 0x10},
	REG_LOFF_SENS: {Preserve: 0x3F, Force: 0x00},
	REG_LOFF_STAT: {Preserve: 0x5F, Force: 0x00},
	REG_RESP1:     {Preserve: 0xFF, Force: 0x02},
	REG_RESP2:     {Preserve: 0x87, Force: 0x01},
	REG_GPIO:      {Preserve: 0x0F, Force: 0x00},
}

func mergeRegister(addr byte, value byte) byte {
	var m, ok = RegisterMasks[addr]
	if !ok {
		return value
	}
	return (value & m.Preserve) | m.Force
}

// RegisterWrite is one step of the register program.
type RegisterWrite struct {
	Addr  byte `yaml:"addr"`
	Value byte `yaml:"value"`
}

// DefaultRegisterProgram: 125 SPS, lead-off comparators on, channel 1
// respiration at gain 6, channel 2 ECG at gain 6, RLD on, respiration
// demodulation with internal clock.
var DefaultRegisterProgram = []RegisterWrite{
	{REG_CONFIG1, 0x00},
	{REG_CONFIG2, 0xA0},
	{REG_LOFF, 0x10},
	{REG_CH1SET, 0x40},
	{REG_CH2SET, 0x60},
	{REG_RLD_SENS, 0x2C},
	{REG_LOFF_SENS, 0x00},
	{REG_RESP1, 0xF2},
	{REG_RESP2, 0x03},
}

// SPIBus does one full duplex transfer with chip select held for the
// whole of it.  len(r) == len(w).
type SPIBus interface {
	Tx(w, r []byte) error
}

type DigitalInput interface {
	Value() (int, error)
}

type DigitalOutput interface {
	SetValue(int) error
}

type ADS1292RConfig struct {
	Program []RegisterWrite

	// Sleep is used for all the settling delays.  Tests make it instant.
	Sleep func(context.Context, time.Duration) error

	Logger *log.Logger
}

type ADS1292R struct {
	spi   SPIBus
	drdy  DigitalInput
	pwdn  DigitalOutput
	start DigitalOutput

	program []RegisterWrite
	sleep   func(context.Context, time.Duration) error
	log     *log.Logger

	closers []func() error
}

func NewADS1292R(spi SPIBus, drdy DigitalInput, pwdn, start DigitalOutput, cfg ADS1292RConfig) *ADS1292R {
	var a = &ADS1292R{
		spi:     spi,
		drdy:    drdy,
		pwdn:    pwdn,
		start:   start,
		program: cfg.Program,
		sleep:   cfg.Sleep,
		log:     cfg.Logger,
	}
	if a.program == nil {
		a.program = DefaultRegisterProgram
	}
	if a.sleep == nil {
		a.sleep = sleepCtx
	}
	if a.log == nil {
		a.log = quietLogger()
	}
	return a
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	var t = time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Init
 *
 * Purpose:     Bring the chip from power on to continuous read.
 *
 * Description:	Hardware reset on PWDN, stop everything, program the
 *		registers, enter RDATAC and finally raise START.
 *		The delays are generous.  This runs once.
 *
 *--------------------------------------------------------------------*/

func (a *ADS1292R) Init(ctx context.Context) error {
	type step struct {
		what  string
		do    func() error
		delay time.Duration
	}

	var steps = []step{
		{"PWDN high", func() error { return a.pwdn.SetValue(1) }, 100 * time.Millisecond},
		{"PWDN low", func() error { return a.pwdn.SetValue(0) }, 100 * time.Millisecond},
		{"PWDN high", func() error { return a.pwdn.SetValue(1) }, 100 * time.Millisecond},
		{"START low", func() error { return a.start.SetValue(0) }, 20 * time.Millisecond},
		{"START high", func() error { return a.start.SetValue(1) }, 20 * time.Millisecond},
		{"START low", func() error { return a.start.SetValue(0) }, 100 * time.Millisecond},
		{"START command", func() error { return a.command(ADS_START) }, 0},
		{"STOP command", func() error { return a.command(ADS_STOP) }, 50 * time.Millisecond},
		{"SDATAC", func() error { return a.command(ADS_SDATAC) }, 300 * time.Millisecond},
	}

	for _, w := range a.program {
		var w = w
		steps = append(steps, step{
			fmt.Sprintf("write register 0x%02x", w.Addr),
			func() error { return a.WriteRegister(w.Addr, w.Value) },
			10 * time.Millisecond,
		})
	}

	steps = append(steps,
		step{"RDATAC", func() error { return a.command(ADS_RDATAC) }, 10 * time.Millisecond},
		step{"START high", func() error { return a.start.SetValue(1) }, 20 * time.Millisecond},
	)

	for _, s := range steps {
		if err := s.do(); err != nil {
			return fmt.Errorf("ADS1292R init, %s: %w", s.what, err)
		}
		if s.delay > 0 {
			if err := a.sleep(ctx, s.delay); err != nil {
				return fmt.Errorf("ADS1292R init, %s: %w", s.what, err)
			}
		}
	}

	a.log.Info("ADS1292R in continuous read mode", "registers", len(a.program))
	return nil
}

func (a *ADS1292R) command(cmd byte) error {
	return a.spi.Tx([]byte{cmd}, make([]byte, 1))
}

// WriteRegister writes one register with the reserved bits fixed up.
func (a *ADS1292R) WriteRegister(addr byte, value byte) error {
	var w = []byte{ADS_WREG | addr, 0x00, mergeRegister(addr, value)}
	return a.spi.Tx(w, make([]byte, len(w)))
}

// ReadRegister only works when the chip is not in RDATAC mode.
func (a *ADS1292R) ReadRegister(addr byte) (byte, error) {
	var w = []byte{ADS_RREG | addr, 0x00, ADS_DUMMY_BYTE}
	var r = make([]byte, len(w))
	if err := a.spi.Tx(w, r); err != nil {
		return 0, err
	}
	return r[2], nil
}

// Ready reads DRDY, which is active low.  It never waits.
func (a *ADS1292R) Ready() (bool, error) {
	var v, err = a.drdy.Value()
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

func (a *ADS1292R) ReadFrame() (SampleFrame, error) {
	var w [FRAME_SIZE]byte
	for i := range w {
		w[i] = ADS_DUMMY_BYTE
	}

	var f SampleFrame
	if err := a.spi.Tx(w[:], f[:]); err != nil {
		return SampleFrame{}, err
	}
	return f, nil
}

// Stop leaves continuous read mode and halts conversions.
func (a *ADS1292R) Stop() error {
	return errors.Join(
		a.command(ADS_SDATAC),
		a.start.SetValue(0),
	)
}

// OnClose registers cleanup for resources the driver was built on.
func (a *ADS1292R) OnClose(f func() error) {
	a.closers = append(a.closers, f)
}

func (a *ADS1292R) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
