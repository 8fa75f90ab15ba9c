package beacon

import "fmt"

// SnapshotKind distinguishes the two reply shapes.
type SnapshotKind int

const (
	// SnapshotUnchanged tells the peer to keep what it has. The same sentinel
	// means "no experiment" when no good snapshot exists yet.
	SnapshotUnchanged SnapshotKind = iota

	// SnapshotFull carries a complete, freshly built experiment.
	SnapshotFull
)

// String returns the kind name.
func (k SnapshotKind) String() string {
	switch k {
	case SnapshotUnchanged:
		return "unchanged"
	case SnapshotFull:
		return "full"
	default:
		return "unknown"
	}
}

// Snapshot is one reply payload.
type Snapshot struct {
	Kind    SnapshotKind
	Payload []byte
	// Generation counts successful builds; zero for the sentinel.
	Generation uint64
}

// Envelope is the wire form of every snapshot. A nil Experiment is the
// unchanged sentinel.
type Envelope struct {
	Experiment any `json:"experiment" yaml:"experiment"`
}

// Snapshotter serializes experiments into whole, self-contained payloads.
type Snapshotter struct {
	codec    Codec
	sentinel []byte
}

// NewSnapshotter creates a Snapshotter using codec.
func NewSnapshotter(codec Codec) (*Snapshotter, error) {
	sentinel, err := codec.Marshal(Envelope{})
	if err != nil {
		return nil, fmt.Errorf("encode sentinel: %w", err)
	}
	return &Snapshotter{codec: codec, sentinel: sentinel}, nil
}

// Serialize encodes exp. A nil exp yields the unchanged sentinel.
func (s *Snapshotter) Serialize(exp Experiment) ([]byte, error) {
	if exp == nil {
		return s.Unchanged(), nil
	}
	data, err := s.codec.Marshal(Envelope{Experiment: exp})
	if err != nil {
		return nil, &Fault{Op: OpSerialize, Err: err}
	}
	return data, nil
}

// Unchanged returns a copy of the sentinel payload.
func (s *Snapshotter) Unchanged() []byte {
	out := make([]byte, len(s.sentinel))
	copy(out, s.sentinel)
	return out
}

// Decode is the peer side of Serialize. It returns nil for the sentinel and
// the decoded experiment for a full payload.
func Decode[T any](codec Codec, data []byte) (*T, error) {
	var env struct {
		Experiment *T `json:"experiment" yaml:"experiment"`
	}
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return env.Experiment, nil
}
