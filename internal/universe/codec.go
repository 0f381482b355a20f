package universe

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Snapshot format: a plain length-prefixed binary record layout with
// magic bytes and an explicit format version. Nothing in the format can
// execute code on load; the earlier gob-based snapshot is deprecated
// and rejected with a rebuild hint.
const (
	snapshotMagic   = "EVTG"
	snapshotVersion = uint16(1)

	// maxStringLen bounds any single string record; longer means corrupt.
	maxStringLen = 1 << 12
	// maxVertices bounds the vertex count; the real universe is ~5,000.
	maxVertices = 1 << 20
)

// Save writes the graph snapshot to path atomically (write temp, rename).
func (g *Graph) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := g.encode(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a snapshot, rebuilds the derived indexes, and verifies
// every structural invariant before returning the graph.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	g, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	g.buildIndexes()
	if err := g.Verify(); err != nil {
		return nil, fmt.Errorf("snapshot failed verification: %w", err)
	}
	return g, nil
}

func (g *Graph) encode(w io.Writer) error {
	if _, err := w.Write([]byte(snapshotMagic)); err != nil {
		return err
	}
	if err := writeU16(w, snapshotVersion); err != nil {
		return err
	}
	if err := writeString(w, g.Version); err != nil {
		return err
	}

	n := uint32(len(g.SystemIDs))
	if err := writeU32(w, n); err != nil {
		return err
	}
	for v := 0; v < int(n); v++ {
		if err := writeU32(w, uint32(g.SystemIDs[v])); err != nil {
			return err
		}
		if err := writeString(w, g.Names[v]); err != nil {
			return err
		}
		if err := writeU64(w, math.Float64bits(g.Security[v])); err != nil {
			return err
		}
		if err := writeU32(w, uint32(g.ConstellationIDs[v])); err != nil {
			return err
		}
		if err := writeU32(w, uint32(g.RegionIDs[v])); err != nil {
			return err
		}
	}
	for v := 0; v < int(n); v++ {
		if err := writeU32(w, uint32(len(g.Adj[v]))); err != nil {
			return err
		}
		for _, nb := range g.Adj[v] {
			if err := writeU32(w, uint32(nb)); err != nil {
				return err
			}
		}
	}
	if err := writeNameMap(w, g.ConstellationNames); err != nil {
		return err
	}
	return writeNameMap(w, g.RegionNames)
}

func decode(r io.Reader) (*Graph, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read snapshot magic: %w", err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("not a graph snapshot (magic %q): legacy formats are no longer supported, rebuild with the build command", magic)
	}
	ver, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if ver != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot format version %d (want %d), rebuild with the build command", ver, snapshotVersion)
	}

	g := &Graph{}
	if g.Version, err = readString(r); err != nil {
		return nil, err
	}
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 || n > maxVertices {
		return nil, fmt.Errorf("implausible vertex count %d", n)
	}

	g.SystemIDs = make([]int32, n)
	g.Names = make([]string, n)
	g.Security = make([]float64, n)
	g.ConstellationIDs = make([]int32, n)
	g.RegionIDs = make([]int32, n)
	g.Adj = make([][]int32, n)

	for v := uint32(0); v < n; v++ {
		id, err := readU32(r)
		if err != nil {
			return nil, err
		}
		g.SystemIDs[v] = int32(id)
		if g.Names[v], err = readString(r); err != nil {
			return nil, err
		}
		bits, err := readU64(r)
		if err != nil {
			return nil, err
		}
		g.Security[v] = math.Float64frombits(bits)
		cid, err := readU32(r)
		if err != nil {
			return nil, err
		}
		g.ConstellationIDs[v] = int32(cid)
		rid, err := readU32(r)
		if err != nil {
			return nil, err
		}
		g.RegionIDs[v] = int32(rid)
	}
	for v := uint32(0); v < n; v++ {
		count, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if count > n {
			return nil, fmt.Errorf("vertex %d has implausible degree %d", v, count)
		}
		adj := make([]int32, count)
		for i := uint32(0); i < count; i++ {
			nb, err := readU32(r)
			if err != nil {
				return nil, err
			}
			if nb >= n {
				return nil, fmt.Errorf("vertex %d has out-of-range neighbor %d", v, nb)
			}
			adj[i] = int32(nb)
		}
		g.Adj[v] = adj
	}
	if g.ConstellationNames, err = readNameMap(r); err != nil {
		return nil, err
	}
	if g.RegionNames, err = readNameMap(r); err != nil {
		return nil, err
	}
	return g, nil
}

func writeNameMap(w io.Writer, m map[int32]string) error {
	ids := make([]int32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	// Stable output: sort keys so identical graphs serialize identically.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := writeU32(w, uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := writeU32(w, uint32(id)); err != nil {
			return err
		}
		if err := writeString(w, m[id]); err != nil {
			return err
		}
	}
	return nil
}

func readNameMap(r io.Reader) (map[int32]string, error) {
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if count > maxVertices {
		return nil, fmt.Errorf("implausible name map size %d", count)
	}
	m := make(map[int32]string, count)
	for i := uint32(0); i < count; i++ {
		id, err := readU32(r)
		if err != nil {
			return nil, err
		}
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		m[int32(id)] = s
	}
	return m, nil
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeString(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("string record too long (%d)", len(s))
	}
	if err := writeU16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string record too long (%d)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
