package serialmux

import (
	"context"
	"net/http"
)

// DisabledSerialMux stands in for the accelerometer when the daemon runs
// with -disable-serial, so stored sessions can still be browsed. It never
// produces a line. Subscribers are still tracked so Unsubscribe and Close
// release anyone waiting on a channel.
type DisabledSerialMux struct {
	subs subscriberSet
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.subs.subscribe(0) }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.subs.unsubscribe(id) }

// SendCommand accepts and discards the command.
func (d *DisabledSerialMux) SendCommand(string) error { return nil }

func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledSerialMux) Close() error {
	d.subs.closeAll()
	return nil
}

func (d *DisabledSerialMux) Initialise() error { return nil }

func (d *DisabledSerialMux) Dropped() uint64 { return 0 }

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("serial disabled"))
	})
}
