package transfer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultTransferSubject is where the external settlement service listens.
const DefaultTransferSubject = "escrow.transfer.request"

// transferRequest is the wire format of a settlement request.
type transferRequest struct {
	Asset  string    `json:"asset"`
	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Amount int64     `json:"amount"`
}

// transferReply is the settlement service's answer. Anything but OK=true
// is a failed transfer.
type transferReply struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// NATSPort settles transfers via request/reply against an external asset
// module. A timeout or a negative reply is reported as failure, which the
// core treats as a hard failure of the enclosing operation.
type NATSPort struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

func NewNATSPort(nc *nats.Conn, subject string, timeout time.Duration) *NATSPort {
	if subject == "" {
		subject = DefaultTransferSubject
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSPort{nc: nc, subject: subject, timeout: timeout}
}

func (p *NATSPort) Transfer(asset string, from, to uuid.UUID, amount int64) error {
	data, err := json.Marshal(transferRequest{Asset: asset, From: from, To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("marshal transfer request: %w", err)
	}

	msg, err := p.nc.Request(p.subject, data, p.timeout)
	if err != nil {
		return fmt.Errorf("transfer request: %w", err)
	}

	var reply transferReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("decode transfer reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("transfer rejected: %s", reply.Reason)
	}
	return nil
}
