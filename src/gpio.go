package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	GPIO character device lines for the AFE control pins
 *		and the ADS1292R assembled from them.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const GPIO_CONSUMER = "heartwolf"

// AFEPins names where each AFE control line is wired.  Chip is the
// character device name as listed by gpioinfo, e.g. gpiochip0.
type AFEPins struct {
	Chip  string `yaml:"chip"`
	DRDY  int    `yaml:"drdy"`
	PWDN  int    `yaml:"pwdn"`
	START int    `yaml:"start"`
}

var DefaultAFEPins = AFEPins{
	Chip:  "gpiochip0",
	DRDY:  17,
	PWDN:  27,
	START: 22,
}

func requestInput(chip string, offset int) (*gpiocdev.Line, error) {
	var l, err = gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithConsumer(GPIO_CONSUMER))
	if err != nil {
		return nil, fmt.Errorf("%s line %d as input: %w", chip, offset, err)
	}
	return l, nil
}

func requestOutput(chip string, offset int, initial int) (*gpiocdev.Line, error) {
	var l, err = gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(initial), gpiocdev.WithConsumer(GPIO_CONSUMER))
	if err != nil {
		return nil, fmt.Errorf("%s line %d as output: %w", chip, offset, err)
	}
	return l, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenADS1292R
 *
 * Purpose:     Claim the SPI device and GPIO lines and build a driver.
 *
 * Inputs:	spiPath	- e.g. /dev/spidev0.0
 *
 *		speedHz	- SPI clock, 0 for default.
 *
 *		pins	- GPIO wiring.
 *
 *		cfg	- Register program and logger.
 *
 * Returns:	Driver, not yet initialized.  Call Init next.
 *		Close releases everything claimed here.
 *
 *--------------------------------------------------------------------*/

func OpenADS1292R(spiPath string, speedHz uint32, pins AFEPins, cfg ADS1292RConfig) (*ADS1292R, error) {
	var spi, err = OpenSPIDev(spiPath, speedHz)
	if err != nil {
		return nil, err
	}

	var closers = []func() error{spi.Close}
	var fail = func(e error) (*ADS1292R, error) {
		var errs = []error{e}
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return nil, errors.Join(errs...)
	}

	drdy, err := requestInput(pins.Chip, pins.DRDY)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, drdy.Close)

	pwdn, err := requestOutput(pins.Chip, pins.PWDN, 1)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, pwdn.Close)

	start, err := requestOutput(pins.Chip, pins.START, 0)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, start.Close)

	var a = NewADS1292R(spi, drdy, pwdn, start, cfg)
	for _, c := range closers {
		a.OnClose(c)
	}
	return a, nil
}
