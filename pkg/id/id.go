package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so ULID entropy is unpredictable.
	// We use ulid.Monotonic so IDs generated within the same millisecond remain
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string (time-sortable identifier).
//
// ULIDs are lexicographically sortable by generation time, which makes them
// ideal for journaling/trading records and SQLite indexes.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// Errors are extremely unlikely unless time goes backwards or entropy fails.
		panic(err)
	}
	return id.String()
}

// Generator issues reproducible ULIDs. Two generators built from the same
// seed and asked for IDs at the same times return the same sequence, which
// keeps replayed ledgers byte-identical.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	entropy io.Reader
}

func NewGenerator(seed int64) *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// SeedFrom hashes arbitrary parts into a generator seed.
func SeedFrom(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return int64(h.Sum64())
}

// At returns an ID stamped with t (simulated time, not wall time).
func (g *Generator) At(t time.Time) string {
	ms := ulid.Timestamp(t.UTC())
	if t.Before(time.Unix(0, 0)) {
		ms = 0
	}
	id, err := ulid.New(ms, g.entropy)
	if err != nil {
		panic(err)
	}
	return id.String()
}
