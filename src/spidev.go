package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Linux spidev access for the AFE.
 *
 * Description:	Only what the ADS1292R needs: mode 1, 8 bit words,
 *		one transfer per ioctl with chip select held throughout.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From linux/spi/spidev.h.  SPI_IOC_MESSAGE(1) is sized for one
// spi_ioc_transfer (32 bytes).
const (
	SPI_IOC_MESSAGE_1    = 0x40206b00
	SPI_IOC_WR_MODE      = 0x40016b01
	SPI_IOC_WR_BITS      = 0x40016b03
	SPI_IOC_WR_MAX_SPEED = 0x40046b04
	SPI_MODE_1           = 0x01
	SPI_DEFAULT_SPEED_HZ = 1000000
	SPI_BITS_PER_WORD    = 8
)

type spiIocTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

type SPIDev struct {
	f       *os.File
	speedHz uint32
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenSPIDev
 *
 * Purpose:     Open and configure a spidev node.
 *
 * Inputs:	path	- Usually /dev/spidev0.0.
 *
 *		speedHz	- Clock.  0 means SPI_DEFAULT_SPEED_HZ.
 *
 *--------------------------------------------------------------------*/

func OpenSPIDev(path string, speedHz uint32) (*SPIDev, error) {
	if speedHz == 0 {
		speedHz = SPI_DEFAULT_SPEED_HZ
	}

	var f, err = os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var mode uint8 = SPI_MODE_1
	var bits uint8 = SPI_BITS_PER_WORD

	for _, s := range []struct {
		what string
		req  uintptr
		arg  unsafe.Pointer
	}{
		{"mode", SPI_IOC_WR_MODE, unsafe.Pointer(&mode)},
		{"bits per word", SPI_IOC_WR_BITS, unsafe.Pointer(&bits)},
		{"speed", SPI_IOC_WR_MAX_SPEED, unsafe.Pointer(&speedHz)},
	} {
		if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), s.req, uintptr(s.arg)); errno != 0 {
			f.Close()
			return nil, fmt.Errorf("%s: set %s: %w", path, s.what, errno)
		}
	}

	return &SPIDev{f: f, speedHz: speedHz}, nil
}

func (d *SPIDev) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("spi transfer: %d bytes out, %d in", len(w), len(r))
	}
	if len(w) == 0 {
		return nil
	}

	var xfer = spiIocTransfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&w[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&r[0]))),
		length:      uint32(len(w)),
		speedHz:     d.speedHz,
		bitsPerWord: SPI_BITS_PER_WORD,
	}

	var _, _, errno = unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), SPI_IOC_MESSAGE_1, uintptr(unsafe.Pointer(&xfer)))
	if errno != 0 {
		return fmt.Errorf("spi transfer: %w", errno)
	}
	return nil
}

func (d *SPIDev) Close() error {
	return d.f.Close()
}
