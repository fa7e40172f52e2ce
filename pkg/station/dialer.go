package station

import (
	"context"
	"net"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
)

const retryInterval = 1 * time.Second

// DialFunc dials a remote host, matching net.Dial's signature so tests can
// substitute an in-process listener.
type DialFunc func(network, address string) (net.Conn, error)

// retryingDialer reconnects on a fixed one-second interval until the peer's
// accept loop comes up or ctx is cancelled. There is no back-off and no
// attempt ceiling: a peer that is slow to start is expected to eventually
// start, and a peer that never starts means the whole distributed trace is
// already lost, so giving up early buys nothing.
type retryingDialer struct {
	clk      clock.Clock
	dialFunc DialFunc
	log      *logrus.Entry
}

func newRetryingDialer(clk clock.Clock, dialFunc DialFunc, log *logrus.Entry) *retryingDialer {
	return &retryingDialer{clk: clk, dialFunc: dialFunc, log: log}
}

func (d *retryingDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	for {
		conn, err := d.dialFunc(network, address)
		if err == nil {
			return conn, nil
		}
		d.log.WithError(err).WithField("address", address).Debug("dial failed, retrying")
		select {
		case <-d.clk.After(retryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
