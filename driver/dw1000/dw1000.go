// Package dw1000 drives a DecaWave DW1000 UWB transceiver over SPI and GPIO
// via periph.io. It implements ranging.Driver: transmit, delayed transmit,
// receive-permanent operation and 40-bit TX/RX timestamping, with signal
// quality readbacks for the ranging engine.
package dw1000

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/ystepanoff/dwranging/protocol"
	"github.com/ystepanoff/dwranging/ranging"
)

// Config selects the bus and pins the module is wired to.
type Config struct {
	// SPIPath is the SPI bus, e.g. "/dev/spidev0.0". Defaults to
	// "/dev/spidev0.0".
	SPIPath string
	// SPIClockHz defaults to 3 MHz; the DW1000 allows up to 20 MHz once the
	// PLL is locked but is safe to bring up slowly.
	SPIClockHz int
	// IRQPin is the GPIO name of the interrupt line, e.g. "GPIO24".
	IRQPin string
	// RSTPin is the GPIO name of the reset line, e.g. "GPIO23". Optional;
	// without it no reset of the chip is performed at start-up.
	RSTPin string
}

// Device is one DW1000 attached to the host.
type Device struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
	irq  gpio.PinIn
	rst  gpio.PinIO

	onSent     func(protocol.Timestamp)
	onReceived func([]byte, protocol.Timestamp)

	mode       protocol.Mode
	permanent  bool
	delayedTX  bool

	rxPower float32
	fpPower float32
	quality float32

	closed chan struct{}
}

// New opens the SPI bus and GPIO lines and verifies the device identifier.
func New(cfg Config) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	if cfg.SPIPath == "" {
		cfg.SPIPath = "/dev/spidev0.0"
	}
	if cfg.SPIClockHz == 0 {
		cfg.SPIClockHz = 3000000
	}

	port, err := spireg.Open(cfg.SPIPath)
	if err != nil {
		return nil, fmt.Errorf("open SPI port: %w", err)
	}
	conn, err := port.Connect(physic.Frequency(cfg.SPIClockHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect SPI: %w", err)
	}

	d := &Device{
		port:   port,
		conn:   conn,
		closed: make(chan struct{}),
	}

	if cfg.RSTPin != "" {
		d.rst = gpioreg.ByName(cfg.RSTPin)
		if d.rst == nil {
			port.Close()
			return nil, fmt.Errorf("reset pin %q not found", cfg.RSTPin)
		}
	}
	d.irq = gpioreg.ByName(cfg.IRQPin)
	if d.irq == nil {
		port.Close()
		return nil, fmt.Errorf("irq pin %q not found", cfg.IRQPin)
	}
	if err := d.irq.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		port.Close()
		return nil, fmt.Errorf("configure irq pin: %w", err)
	}

	d.hardReset()

	id, err := d.readReg32(regDevID, 0)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("read device id: %w", err)
	}
	if id != devIDExpected {
		port.Close()
		return nil, fmt.Errorf("unexpected device id %08X (want %08X)", id, devIDExpected)
	}

	go d.irqLoop()
	return d, nil
}

// Close releases the bus and stops the interrupt goroutine.
func (d *Device) Close() error {
	close(d.closed)
	return d.port.Close()
}

func (d *Device) hardReset() {
	if d.rst == nil {
		return
	}
	d.rst.Out(gpio.Low)
	time.Sleep(2 * time.Millisecond)
	d.rst.Out(gpio.High)
	time.Sleep(5 * time.Millisecond)
}

// --- SPI transactions -------------------------------------------------------

// The DW1000 transaction header is 1-3 bytes: bit7 = write, bit6 = sub-index
// present, low 6 bits = register file ID; an optional 1-2 byte sub-address
// follows.
func header(write bool, reg byte, sub uint16) []byte {
	h := reg & 0x3F
	if write {
		h |= 0x80
	}
	switch {
	case sub == 0:
		return []byte{h}
	case sub < 0x80:
		return []byte{h | 0x40, byte(sub)}
	default:
		return []byte{h | 0x40, byte(sub&0x7F) | 0x80, byte(sub >> 7)}
	}
}

func (d *Device) readReg(reg byte, sub uint16, buf []byte) error {
	hdr := header(false, reg, sub)
	w := make([]byte, len(hdr)+len(buf))
	copy(w, hdr)
	r := make([]byte, len(w))
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("spi read reg %02X: %w", reg, err)
	}
	copy(buf, r[len(hdr):])
	return nil
}

func (d *Device) writeReg(reg byte, sub uint16, data []byte) error {
	hdr := header(true, reg, sub)
	w := make([]byte, len(hdr)+len(data))
	copy(w, hdr)
	copy(w[len(hdr):], data)
	if err := d.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("spi write reg %02X: %w", reg, err)
	}
	return nil
}

func (d *Device) readReg32(reg byte, sub uint16) (uint32, error) {
	var b [4]byte
	if err := d.readReg(reg, sub, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *Device) writeReg32(reg byte, sub uint16, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return d.writeReg(reg, sub, b[:])
}

func (d *Device) readTimestamp(reg byte) (protocol.Timestamp, error) {
	var b [protocol.TimestampBytes]byte
	if err := d.readReg(reg, 0, b[:]); err != nil {
		return 0, err
	}
	return protocol.TimestampFromBytes(b[:]), nil
}

// --- ranging.Driver ---------------------------------------------------------

func (d *Device) Configure(deviceAddress uint16, networkID uint16, mode protocol.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = mode

	var panadr [4]byte
	binary.LittleEndian.PutUint16(panadr[0:2], deviceAddress)
	binary.LittleEndian.PutUint16(panadr[2:4], networkID)
	if err := d.writeReg(regPANADR, 0, panadr[:]); err != nil {
		return err
	}

	// Frame filtering: data frames for us plus reserved types so blink
	// frames still come through, and automatic receiver re-enable on RX
	// errors so receive-permanent mode survives bad frames.
	cfg := uint32(sysCfgFFEnable | sysCfgFFAllowData | sysCfgFFAllowRsvd | sysCfgRxAutoRE)
	if err := d.writeReg32(regSysCfg, 0, cfg); err != nil {
		return err
	}

	if err := d.tuneFor(mode); err != nil {
		return err
	}

	// Interrupts: TX done and RX good frame.
	return d.writeReg32(regSysMask, 0, sysMaskMTXFRS|sysMaskMRXFCG)
}

// tuneFor programs data rate, PRF and preamble length plus the analog tuning
// blocks that depend on them. Values are the user-manual defaults for
// channel 5.
func (d *Device) tuneFor(mode protocol.Mode) error {
	dataRate, prf, preamble := mode[0], mode[1], mode[2]

	// TX_FCTRL: data rate and preamble length fields, kept and merged at
	// transmit time with the frame length.
	txfctrl := uint32(dataRate&0x03)<<13 | uint32(prf&0x03)<<16 | uint32(preamble&0x0F)<<18
	if err := d.writeReg32(regTxFCtrl, 0, txfctrl); err != nil {
		return err
	}

	// CHAN_CTRL: RX/TX channel 5, PRF, preamble code 4 both ways.
	chanctrl := uint32(5) | uint32(5)<<4 | uint32(prf&0x03)<<18 |
		uint32(4)<<22 | uint32(4)<<27
	if err := d.writeReg32(regChanCtrl, 0, chanctrl); err != nil {
		return err
	}

	// AGC and digital receiver tuning per PRF (magic values from the user
	// manual tuning tables).
	if prf == protocol.TXPulseFreq16MHz {
		if err := d.writeReg(regAgcTune, 0x04, []byte{0x70, 0x88}); err != nil {
			return err
		}
		if err := d.writeReg(regDrxTune, 0x04, []byte{0x87, 0x00}); err != nil {
			return err
		}
		if err := d.writeReg(regLdeIf, 0x1806, []byte{0x07, 0x16}); err != nil {
			return err
		}
	} else {
		if err := d.writeReg(regAgcTune, 0x04, []byte{0x9B, 0x88}); err != nil {
			return err
		}
		if err := d.writeReg(regDrxTune, 0x04, []byte{0x10, 0x00}); err != nil {
			return err
		}
		if err := d.writeReg(regLdeIf, 0x1806, []byte{0x07, 0x06}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) SetEUI(eui protocol.EUI) error {
	var b [8]byte
	for i := range b {
		b[i] = eui[len(eui)-1-i]
	}
	return d.writeReg(regEUI, 0, b[:])
}

func (d *Device) StartReceive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permanent = true
	return d.rxEnable()
}

func (d *Device) rxEnable() error {
	return d.writeReg32(regSysCtrl, 0, sysCtrlRXEnab)
}

// SetDelay programs DX_TIME for the next transmission and returns the device
// time at which the frame will leave the antenna. The DW1000 ignores the low
// 9 bits of DX_TIME, so the scheduled time is rounded the same way the chip
// rounds it.
func (d *Device) SetDelay(delay time.Duration) (protocol.Timestamp, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sysTime, err := d.readTimestamp(regSysTime)
	if err != nil {
		return 0, err
	}
	target := sysTime.Add(protocol.TimestampFromDuration(delay))
	target = protocol.Timestamp(int64(target) &^ 0x1FF)

	var b [protocol.TimestampBytes]byte
	target.PutBytes(b[:])
	if err := d.writeReg(regDXTime, 0, b[:]); err != nil {
		return 0, err
	}
	d.delayedTX = true
	return target, nil
}

func (d *Device) Transmit(frame []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(frame) > protocol.FrameBufLen {
		return fmt.Errorf("frame of %d bytes exceeds MTU", len(frame))
	}

	// Force idle, load the buffer, set frame length (+2 for the CRC the
	// chip appends), then strobe TX.
	if err := d.writeReg32(regSysCtrl, 0, sysCtrlTRXOff); err != nil {
		return err
	}
	if err := d.writeReg(regTxBuffer, 0, frame); err != nil {
		return err
	}
	fctrl, err := d.readReg32(regTxFCtrl, 0)
	if err != nil {
		return err
	}
	fctrl = fctrl&^0x7F | uint32(len(frame)+2)&0x7F
	if err := d.writeReg32(regTxFCtrl, 0, fctrl); err != nil {
		return err
	}

	ctrl := uint32(sysCtrlTXStart)
	if d.delayedTX {
		ctrl |= sysCtrlTXDelay
		d.delayedTX = false
	}
	return d.writeReg32(regSysCtrl, 0, ctrl)
}

func (d *Device) OnSent(fn func(protocol.Timestamp)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSent = fn
}

func (d *Device) OnReceived(fn func([]byte, protocol.Timestamp)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReceived = fn
}

func (d *Device) LastRXPower() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rxPower
}

func (d *Device) LastFirstPathPower() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fpPower
}

func (d *Device) LastReceiveQuality() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quality
}

// --- interrupt handling -----------------------------------------------------

// irqLoop watches the IRQ line and turns chip events into the driver
// callbacks. This goroutine is the "radio context" of the engine contract:
// the callbacks must not block.
func (d *Device) irqLoop() {
	for {
		select {
		case <-d.closed:
			return
		default:
		}
		if !d.irq.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		d.serviceIRQ()
	}
}

func (d *Device) serviceIRQ() {
	status, err := d.readReg32(regSysStatus, 0)
	if err != nil {
		return
	}

	if status&sysStatusTXFRS != 0 {
		txTime, err := d.readTimestamp(regTxTime)
		d.writeReg32(regSysStatus, 0, sysStatusTXFRS)
		d.mu.Lock()
		sent := d.onSent
		permanent := d.permanent
		d.mu.Unlock()
		if err == nil && sent != nil {
			sent(txTime)
		}
		if permanent {
			d.rxEnable()
		}
	}

	if status&sysStatusRXFCG != 0 {
		d.handleRXFrame()
		d.mu.Lock()
		permanent := d.permanent
		d.mu.Unlock()
		if permanent {
			d.rxEnable()
		}
	}

	if status&sysStatusAllRXErr != 0 {
		d.writeReg32(regSysStatus, 0, sysStatusAllRXErr)
	}
}

func (d *Device) handleRXFrame() {
	finfo, err := d.readReg32(regRxFInfo, 0)
	if err != nil {
		return
	}
	// Strip the 2-byte CRC the chip verified.
	length := int(finfo&rxFInfoFrameLenMask) - 2
	if length <= 0 || length > protocol.FrameBufLen {
		d.writeReg32(regSysStatus, 0, sysStatusRXFCG|sysStatusRXDFR)
		return
	}

	frame := make([]byte, length)
	if err := d.readReg(regRxBuffer, 0, frame); err != nil {
		return
	}
	rxTime, err := d.readTimestamp(regRxTime)
	if err != nil {
		return
	}

	rxpacc := float64((finfo >> rxFInfoRXPACCShift) & rxFInfoRXPACCMask)
	d.updateSignal(rxpacc)

	d.writeReg32(regSysStatus, 0, sysStatusRXFCG|sysStatusRXDFR|sysStatusLDEDone)

	d.mu.Lock()
	recv := d.onReceived
	d.mu.Unlock()
	if recv != nil {
		recv(frame, rxTime)
	}
}

// updateSignal derives the received power, first path power and receive
// quality estimates from the diagnostics registers (user manual 4.7).
func (d *Device) updateSignal(rxpacc float64) {
	var fqual [8]byte
	if err := d.readReg(regRxFQual, 0, fqual[:]); err != nil {
		return
	}
	stdNoise := float64(binary.LittleEndian.Uint16(fqual[0:2]))
	fpAmpl2 := float64(binary.LittleEndian.Uint16(fqual[2:4]))
	fpAmpl3 := float64(binary.LittleEndian.Uint16(fqual[4:6]))
	cirPwr := float64(binary.LittleEndian.Uint16(fqual[6:8]))

	var fpAmpl1b [2]byte
	d.readReg(regRxTime, 7, fpAmpl1b[:])
	fpAmpl1 := float64(binary.LittleEndian.Uint16(fpAmpl1b[:]))

	corr := powerCorr16MHz
	if d.mode[1] == protocol.TXPulseFreq64MHz {
		corr = powerCorr64MHz
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rxpacc > 0 {
		if cirPwr > 0 {
			d.rxPower = float32(10*math.Log10(cirPwr*131072/(rxpacc*rxpacc)) - corr)
		}
		fp := fpAmpl1*fpAmpl1 + fpAmpl2*fpAmpl2 + fpAmpl3*fpAmpl3
		if fp > 0 {
			d.fpPower = float32(10*math.Log10(fp/(rxpacc*rxpacc)) - corr)
		}
	}
	if stdNoise > 0 {
		d.quality = float32(fpAmpl2 / stdNoise)
	}
}

var _ ranging.Driver = (*Device)(nil)
