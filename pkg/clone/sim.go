package clone

import (
	"bytes"
	"io"
	"sync"
)

// BlockOp identifies a block request seen by the simulated radio.
type BlockOp byte

const (
	BlockRead  BlockOp = cmdRead
	BlockWrite BlockOp = cmdWrite
)

func (o BlockOp) String() string {
	switch o {
	case BlockRead:
		return "read"
	case BlockWrite:
		return "write"
	default:
		return "unknown"
	}
}

// BlockHook lets tests inspect or reject block requests. Returning an error
// makes the radio answer with NAK.
type BlockHook func(op BlockOp, addr int, data []byte) error

type simState int

const (
	simIdle simState = iota
	simMagic
	simIdent
	simConfirm
	simReady
	simReadAck
)

// SimRadio emulates the radio side of the clone protocol. It is an
// io.ReadWriter: bytes written are host commands, bytes read are replies.
// Reads with no pending reply return io.EOF, like a serial read timeout.
type SimRadio struct {
	Ident string
	Magic []byte

	OnBlock BlockHook

	mu     sync.Mutex
	mem    []byte
	state  simState
	in     []byte
	out    bytes.Buffer
	reads  int
	writes int
	exits  int
}

// NewSimRadio returns a radio holding a copy of mem.
func NewSimRadio(mem []byte, ident string) *SimRadio {
	return &SimRadio{
		Ident: ident,
		Magic: DefaultMagic,
		mem:   append([]byte(nil), mem...),
	}
}

// Memory returns a copy of the radio's memory.
func (r *SimRadio) Memory() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.mem...)
}

// Counts reports how many block reads, block writes and exits were served.
func (r *SimRadio) Counts() (reads, writes, exits int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads, r.writes, r.exits
}

func (r *SimRadio) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out.Len() == 0 {
		return 0, io.EOF
	}
	return r.out.Read(p)
}

func (r *SimRadio) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.in = append(r.in, p...)
	r.process()
	return len(p), nil
}

func (r *SimRadio) consume(n int) {
	r.in = r.in[n:]
}

func (r *SimRadio) identReply() []byte {
	id := make([]byte, identLen)
	copy(id, r.Ident)
	return id
}

func (r *SimRadio) process() {
	for len(r.in) > 0 {
		switch r.state {
		case simIdle:
			if r.in[0] == STX {
				r.state = simMagic
			}
			r.consume(1)
		case simMagic:
			if len(r.in) < len(r.Magic) {
				return
			}
			if bytes.Equal(r.in[:len(r.Magic)], r.Magic) {
				r.out.WriteByte(ACK)
				r.state = simIdent
			} else {
				r.state = simIdle
			}
			r.consume(len(r.Magic))
		case simIdent:
			if r.in[0] == STX {
				r.out.Write(r.identReply())
				r.state = simConfirm
			} else {
				r.state = simIdle
			}
			r.consume(1)
		case simConfirm:
			if r.in[0] == ACK {
				r.out.WriteByte(ACK)
				r.state = simReady
			} else {
				r.state = simIdle
			}
			r.consume(1)
		case simReadAck:
			if r.in[0] == ACK {
				r.out.WriteByte(ACK)
			} else {
				r.out.WriteByte(NAK)
			}
			r.state = simReady
			r.consume(1)
		case simReady:
			if !r.command() {
				return
			}
		}
	}
}

// command handles one programming-mode command and reports whether a
// complete command was available.
func (r *SimRadio) command() bool {
	switch r.in[0] {
	case cmdExit:
		r.exits++
		r.state = simIdle
		r.consume(1)
		return true
	case cmdRead, cmdWrite:
	default:
		r.out.WriteByte(NAK)
		r.consume(1)
		return true
	}
	if len(r.in) < 4 {
		return false
	}
	op := BlockOp(r.in[0])
	addr := int(r.in[1])<<8 | int(r.in[2])
	n := int(r.in[3])
	if op == BlockWrite && len(r.in) < 4+n {
		return false
	}
	header := append([]byte(nil), r.in[:4]...)
	var payload []byte
	if op == BlockWrite {
		payload = append([]byte(nil), r.in[4:4+n]...)
		r.consume(4 + n)
	} else {
		r.consume(4)
	}

	if addr+n > len(r.mem) {
		r.out.WriteByte(NAK)
		return true
	}
	if r.OnBlock != nil {
		data := payload
		if op == BlockRead {
			data = r.mem[addr : addr+n]
		}
		if err := r.OnBlock(op, addr, data); err != nil {
			r.out.WriteByte(NAK)
			return true
		}
	}

	if op == BlockRead {
		header[0] = cmdWrite
		r.out.Write(header)
		r.out.Write(r.mem[addr : addr+n])
		r.reads++
		r.state = simReadAck
		return true
	}
	copy(r.mem[addr:], payload)
	r.writes++
	r.out.WriteByte(ACK)
	return true
}

// SimAdapter is a BlockAdapter wired to an in-memory SimRadio.
type SimAdapter struct {
	*BlockAdapter
	Radio *SimRadio
}

// NewSimAdapter builds a simulator whose radio holds mem. cfg.Ident is used
// as the radio's identification.
func NewSimAdapter(mem []byte, cfg BlockConfig, opts ...Option) *SimAdapter {
	radio := NewSimRadio(mem, cfg.Ident)
	if len(cfg.Magic) > 0 {
		radio.Magic = cfg.Magic
	}
	cfg.Settle = 0
	opts = append([]Option{WithPort("simulator", 0)}, opts...)
	return &SimAdapter{
		BlockAdapter: NewBlockAdapter(radio, cfg, opts...),
		Radio:        radio,
	}
}

// Info implements the Adapter interface.
func (s *SimAdapter) Info() (AdapterInfo, error) {
	info, err := s.BlockAdapter.Info()
	info.Name = "Simulator"
	info.Notes = "in-memory radio, no hardware"
	return info, err
}
