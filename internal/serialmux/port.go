package serialmux

import "io"

// SerialPorter is the part of a serial port the mux needs. go.bug.st/serial
// ports, the dev-mode MockSerialPort and TestableSerialPort all satisfy it.
type SerialPorter interface {
	io.ReadWriteCloser
}

// PortOpener opens the port at path. Production code uses OpenSerialPort;
// tests substitute a function returning a TestableSerialPort.
type PortOpener func(path string, opts PortOptions) (SerialPorter, error)
