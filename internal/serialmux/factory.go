package serialmux

import (
	"go.bug.st/serial"
)

// OpenSerialPort opens a real serial port with the given options. It
// satisfies PortOpener.
func OpenSerialPort(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions, initCommands ...string) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[serial.Port](port, initCommands...), nil
}

// NewSerialMuxWithOpener opens path through open and wraps the resulting port.
func NewSerialMuxWithOpener(open PortOpener, path string, opts PortOptions, initCommands ...string) (*SerialMux[SerialPorter], error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux[SerialPorter](port, initCommands...), nil
}
