package heartwolf

/*------------------------------------------------------------------
 *
 * Module:      config.go
 *
 * Purpose:   	Read configuration information from a YAML file.
 *
 * Description:	Everything has a default, so an empty file (or no file
 *		at all) gives a working monitor on the usual wiring.
 *		Command line options are applied on top by the caller.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

type SignalConfig struct {
	ECGChannel   int  `yaml:"ecg_channel"`
	StrictStatus bool `yaml:"strict_status"`

	QRS QRSConfig `yaml:"qrs"`

	// An explicit coefficient table wins over a design.
	ECGFilter  FilterDesign `yaml:"ecg_filter"`
	ECGCoeffs  []int16      `yaml:"ecg_coeffs"`
	RespFilter FilterDesign `yaml:"resp_filter"`
	RespCoeffs []int16      `yaml:"resp_coeffs"`

	BreathDetector string `yaml:"breath_detector"` // held, crossing
}

type AFEConfig struct {
	SPIDevice string          `yaml:"spi_device"`
	SPISpeed  uint32          `yaml:"spi_speed_hz"`
	Pins      AFEPins         `yaml:"pins"`
	Registers []RegisterWrite `yaml:"registers"` // Empty for DefaultRegisterProgram.

	PollInterval time.Duration `yaml:"poll_interval"`
}

type ReportConfig struct {
	Every int `yaml:"every"`

	SerialDevice string `yaml:"serial_device"`
	SerialBaud   int    `yaml:"serial_baud"`

	Pty        bool   `yaml:"pty"`
	PtySymlink string `yaml:"pty_symlink"`

	TCPAddr   string `yaml:"tcp_addr"` // Empty for no server.
	DNSSD     bool   `yaml:"dns_sd"`
	DNSSDName string `yaml:"dns_sd_name"`
}

type VitalsLogConfig struct {
	Path     string        `yaml:"path"` // Empty for no log.
	Daily    bool          `yaml:"daily"`
	Pattern  string        `yaml:"pattern"`
	Interval time.Duration `yaml:"interval"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty for no /metrics endpoint.
}

type Config struct {
	Log       LogOptions      `yaml:"log"`
	Signal    SignalConfig    `yaml:"signal"`
	AFE       AFEConfig       `yaml:"afe"`
	Report    ReportConfig    `yaml:"report"`
	VitalsLog VitalsLogConfig `yaml:"vitals_log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		Log: LogOptions{Level: "info", Format: "text"},
		Signal: SignalConfig{
			ECGChannel:     ECG_CHANNEL,
			QRS:            DefaultQRSConfig(),
			ECGFilter:      DefaultECGDesign,
			RespFilter:     DefaultRespDesign,
			BreathDetector: "held",
		},
		AFE: AFEConfig{
			SPIDevice:    "/dev/spidev0.0",
			SPISpeed:     SPI_DEFAULT_SPEED_HZ,
			Pins:         DefaultAFEPins,
			PollInterval: time.Millisecond,
		},
		Report: ReportConfig{
			Every:      1,
			SerialBaud: DEFAULT_SERIAL_BAUD,
			PtySymlink: DEFAULT_PTY_SYMLINK,
		},
		VitalsLog: VitalsLogConfig{
			Daily:    true,
			Pattern:  DEFAULT_VITALS_PATTERN,
			Interval: time.Second,
		},
	}
}

// Search order when no file is named on the command line.
var ConfigSearchLocations = []string{
	"heartwolf.yaml", // Current working directory
	"/etc/heartwolf/heartwolf.yaml",
	"/usr/local/etc/heartwolf.yaml",
}

/*------------------------------------------------------------------
 *
 * Name:        LoadConfig
 *
 * Purpose:     Read the configuration file.
 *
 * Inputs:	path	- File name.  Empty to try ConfigSearchLocations
 *			  and fall back to defaults if none exist.
 *
 * Returns:	Defaults overlaid with whatever the file sets, and the
 *		name of the file actually read ("" for none).
 *
 *------------------------------------------------------------------*/

func LoadConfig(path string) (Config, string, error) {
	if path != "" {
		var f, err = os.Open(path)
		if err != nil {
			return Config{}, "", fmt.Errorf("config: %w", err)
		}
		defer f.Close()

		cfg, err := ReadConfig(f)
		if err != nil {
			return Config{}, "", fmt.Errorf("config %s: %w", path, err)
		}
		return cfg, path, nil
	}

	for _, location := range ConfigSearchLocations {
		var f, err = os.Open(location)
		if err != nil {
			continue
		}
		defer f.Close()

		cfg, err := ReadConfig(f)
		if err != nil {
			return Config{}, "", fmt.Errorf("config %s: %w", location, err)
		}
		return cfg, location, nil
	}

	return DefaultConfig(), "", nil
}

// ReadConfig parses YAML over DefaultConfig and checks the result.
func ReadConfig(r io.Reader) (Config, error) {
	var data, err = io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}

	var cfg = DefaultConfig()

	if len(bytes.TrimSpace(data)) > 0 {
		var dec = yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.Signal.ECGChannel < 0 || c.Signal.ECGChannel >= MAX_CHANNELS {
		errs = append(errs, fmt.Errorf("signal.ecg_channel %d out of range 0..%d", c.Signal.ECGChannel, MAX_CHANNELS-1))
	}
	if c.Signal.QRS.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("signal.qrs.sample_rate %d is negative", c.Signal.QRS.SampleRate))
	}
	switch c.Signal.BreathDetector {
	case "", "held", "crossing":
	default:
		errs = append(errs, fmt.Errorf("signal.breath_detector %q: want held or crossing", c.Signal.BreathDetector))
	}
	if w := c.Signal.ECGFilter.Window; w != "" && c.Signal.ECGCoeffs == nil {
		if _, err := ParseWindowType(w); err != nil {
			errs = append(errs, fmt.Errorf("signal.ecg_filter: %w", err))
		}
	}
	if w := c.Signal.RespFilter.Window; w != "" && c.Signal.RespCoeffs == nil {
		if _, err := ParseWindowType(w); err != nil {
			errs = append(errs, fmt.Errorf("signal.resp_filter: %w", err))
		}
	}
	if c.Signal.ECGCoeffs != nil && len(c.Signal.ECGCoeffs) < 2 {
		errs = append(errs, fmt.Errorf("signal.ecg_coeffs: %w", ErrNoCoefficients))
	}
	if c.Signal.RespCoeffs != nil && len(c.Signal.RespCoeffs) < 2 {
		errs = append(errs, fmt.Errorf("signal.resp_coeffs: %w", ErrNoCoefficients))
	}
	if c.AFE.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("afe.poll_interval must be positive"))
	}
	if c.Report.Every < 0 {
		errs = append(errs, fmt.Errorf("report.every %d is negative", c.Report.Every))
	}
	if c.VitalsLog.Path != "" && c.VitalsLog.Interval <= 0 {
		errs = append(errs, fmt.Errorf("vitals_log.interval must be positive"))
	}

	return errors.Join(errs...)
}

/*------------------------------------------------------------------
 *
 * Name:        PipelineConfig
 *
 * Purpose:     Turn the signal section into what NewPipeline takes.
 *
 * Description:	Coefficient tables are designed here, once, so a bad
 *		design is reported against the config rather than
 *		somewhere deep in the pipeline.
 *
 *------------------------------------------------------------------*/

func (c Config) PipelineConfig(logger *log.Logger, met *Metrics) (PipelineConfig, error) {
	var pc = DefaultPipelineConfig()

	pc.ECGChannel = c.Signal.ECGChannel
	pc.StrictStatus = c.Signal.StrictStatus
	pc.QRS = c.Signal.QRS
	pc.QRS.fillDefaults()
	pc.Logger = logger
	pc.Metrics = met

	pc.ECGCoeffs = c.Signal.ECGCoeffs
	if pc.ECGCoeffs == nil {
		var t, err = c.Signal.ECGFilter.Coefficients(pc.QRS.SampleRate)
		if err != nil {
			return PipelineConfig{}, fmt.Errorf("signal.ecg_filter: %w", err)
		}
		pc.ECGCoeffs = t
	}

	pc.RespCoeffs = c.Signal.RespCoeffs
	if pc.RespCoeffs == nil {
		var t, err = c.Signal.RespFilter.Coefficients(pc.QRS.SampleRate)
		if err != nil {
			return PipelineConfig{}, fmt.Errorf("signal.resp_filter: %w", err)
		}
		pc.RespCoeffs = t
	}

	if c.Signal.BreathDetector == "crossing" {
		pc.BreathDetector = NewCrossingBreathDetector(pc.QRS.SampleRate)
	}

	return pc, nil
}
